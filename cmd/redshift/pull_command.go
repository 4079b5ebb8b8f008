package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPullCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pull REMOTE LOCAL",
		Short: "Copy a file off the device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeStore, err := ctx.directEngine()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := engine.Pull(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pulled %s to %s\n", args[0], args[1])
			return nil
		},
	}
}
