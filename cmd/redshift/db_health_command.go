package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"redshift/internal/config"
	"redshift/internal/ipc"
	"redshift/internal/store"
)

func newDBHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "db-health",
		Short: "Check cache database integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := fetchDatabaseHealth(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			fmt.Fprintln(stdout, renderStatusLine("Database", boolKind(resp.DatabaseExists), resp.DBPath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Readable", boolKind(resp.DatabaseReadable), "", colorize))
			fmt.Fprintln(stdout, renderStatusLine("Integrity", boolKind(resp.IntegrityCheck), "", colorize))
			if len(resp.TablesPresent) > 0 {
				fmt.Fprintln(stdout, renderStatusLine("Tables", statusInfo, strings.Join(resp.TablesPresent, ", "), colorize))
			}
			if len(resp.MissingTables) > 0 {
				fmt.Fprintln(stdout, renderStatusLine("Missing", statusError, strings.Join(resp.MissingTables, ", "), colorize))
			}
			if resp.Error != "" {
				fmt.Fprintln(stdout, renderStatusLine("Error", statusError, resp.Error, colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

func fetchDatabaseHealth(ctx *commandContext) (*ipc.DatabaseHealthResponse, error) {
	if ctx.daemonRunning() {
		var resp *ipc.DatabaseHealthResponse
		err := ctx.withClient(func(client *ipc.Client) error {
			var clientErr error
			resp, clientErr = client.DatabaseHealth()
			return clientErr
		})
		return resp, err
	}

	var resp *ipc.DatabaseHealthResponse
	err := ctx.withStore(func(cfg *config.Config, st *store.Store) error {
		health, err := st.CheckHealth(cmdContext())
		if err != nil && health.Error == "" {
			return err
		}
		resp = &ipc.DatabaseHealthResponse{
			DBPath:           health.DBPath,
			DatabaseExists:   health.DatabaseExists,
			DatabaseReadable: health.DatabaseReadable,
			TablesPresent:    health.TablesPresent,
			MissingTables:    health.MissingTables,
			IntegrityCheck:   health.IntegrityCheck,
			Error:            health.Error,
		}
		return nil
	})
	return resp, err
}
