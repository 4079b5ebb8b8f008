package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redshift/internal/ipc"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run an incremental library scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := runScan(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Scanned %d files in %s\n", resp.Scanned, resp.Duration)
			fmt.Fprintf(stdout, "  new: %d  modified: %d  unchanged: %d  deleted: %d\n",
				resp.New, resp.Modified, resp.Unchanged, resp.Deleted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func runScan(ctx *commandContext) (*ipc.ScanResponse, error) {
	if ctx.daemonRunning() {
		var resp *ipc.ScanResponse
		err := ctx.withClient(func(client *ipc.Client) error {
			var clientErr error
			resp, clientErr = client.Scan()
			return clientErr
		})
		return resp, err
	}

	engine, closeStore, err := ctx.directEngine()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	summary, err := engine.Scan(cmdContext())
	if err != nil {
		return nil, err
	}
	return &ipc.ScanResponse{
		Scanned:   summary.Scanned,
		New:       summary.New,
		Modified:  summary.Modified,
		Unchanged: summary.Unchanged,
		Deleted:   summary.Deleted,
		Duration:  summary.Duration.String(),
	}, nil
}
