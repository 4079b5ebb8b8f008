package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redshift/internal/config"
	"redshift/internal/ipc"
	"redshift/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := fetchSessions(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, sessions)
			}

			stdout := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(stdout, "No sync sessions recorded")
				return nil
			}

			rows := make([][]string, 0, len(sessions))
			for _, session := range sessions {
				rows = append(rows, []string{
					session.StartedAt,
					session.Method,
					fmt.Sprintf("%d", session.FilesQueued),
					fmt.Sprintf("%d", session.FilesTransferred),
					fmt.Sprintf("%d", session.FilesFailed),
					humanBytes(session.TotalBytes),
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"Started", "Method", "Queued", "Transferred", "Failed", "Bytes"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func fetchSessions(ctx *commandContext, limit int) ([]ipc.SessionStatus, error) {
	if ctx.daemonRunning() {
		var resp *ipc.SessionsResponse
		err := ctx.withClient(func(client *ipc.Client) error {
			var clientErr error
			resp, clientErr = client.Sessions(limit)
			return clientErr
		})
		if err != nil {
			return nil, err
		}
		return resp.Sessions, nil
	}

	var sessions []ipc.SessionStatus
	err := ctx.withStore(func(cfg *config.Config, st *store.Store) error {
		records, err := st.Sessions(cmdContext(), limit)
		if err != nil {
			return err
		}
		for _, record := range records {
			sessions = append(sessions, sessionStatusFromRecord(record))
		}
		return nil
	})
	return sessions, err
}
