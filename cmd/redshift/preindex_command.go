package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redshift/internal/ipc"
)

func newPreIndexCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "preindex",
		Short: "Seed the transfer ledger from the device's current contents",
		Long: "Reads the music already on the attached device and records it in the\n" +
			"transfer ledger so the next sync does not copy those tracks again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := runPreIndex(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d device tracks via %s; seeded %d ledger rows\n",
				resp.Indexed, resp.Strategy, resp.Seeded)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func runPreIndex(ctx *commandContext) (*ipc.PreIndexResponse, error) {
	if ctx.daemonRunning() {
		var resp *ipc.PreIndexResponse
		err := ctx.withClient(func(client *ipc.Client) error {
			var clientErr error
			resp, clientErr = client.PreIndex()
			return clientErr
		})
		return resp, err
	}

	engine, closeStore, err := ctx.directEngine()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	result, err := engine.PreIndex(cmdContext())
	if err != nil {
		return nil, err
	}
	return &ipc.PreIndexResponse{
		Strategy: result.Strategy,
		Indexed:  result.Indexed,
		Seeded:   result.Seeded,
	}, nil
}
