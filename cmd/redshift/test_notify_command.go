package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"redshift/internal/ipc"
	"redshift/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.daemonRunning() {
				return ctx.withClient(func(client *ipc.Client) error {
					resp, err := client.TestNotification()
					if err != nil {
						if resp != nil && resp.Message != "" {
							fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
						}
						return err
					}
					if resp == nil {
						return errors.New("missing notification response")
					}
					if resp.Message != "" {
						fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
					}
					return nil
				})
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "ntfy topic not configured")
				return nil
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
