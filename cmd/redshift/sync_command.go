package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"redshift/internal/ipc"
	"redshift/internal/syncer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var (
		method   string
		cleanup  bool
		skipScan bool
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync session against the attached device",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := runSync(ctx, ipc.SyncStartRequest{
				Method:          method,
				CleanupOrphaned: cleanup,
				SkipScan:        skipScan,
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Session %s (%s) finished in %s\n", resp.SessionID, resp.Method, resp.Duration)
			fmt.Fprintf(stdout, "  queued: %d  transferred: %d  failed: %d  bytes: %s\n",
				resp.Queued, resp.Transferred, resp.Failed, humanBytes(resp.Bytes))
			if resp.Orphans > 0 {
				fmt.Fprintf(stdout, "  orphans cleaned: %d\n", resp.Orphans)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", "", "Transfer method (direct, sandbox, manual)")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Remove device files whose library source vanished")
	cmd.Flags().BoolVar(&skipScan, "skip-scan", false, "Plan from the existing snapshot without rescanning")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func runSync(ctx *commandContext, req ipc.SyncStartRequest) (*ipc.SyncStartResponse, error) {
	if ctx.daemonRunning() {
		var resp *ipc.SyncStartResponse
		err := ctx.withClient(func(client *ipc.Client) error {
			var clientErr error
			resp, clientErr = client.SyncStart(req)
			return clientErr
		})
		return resp, err
	}

	engine, closeStore, err := ctx.directEngine()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	summary, err := engine.StartSession(cmdContext(), syncer.SessionOptions{
		Method:          req.Method,
		CleanupOrphaned: req.CleanupOrphaned,
		SkipScan:        req.SkipScan,
	})
	if err != nil {
		return nil, err
	}
	return &ipc.SyncStartResponse{
		SessionID:   summary.SessionID,
		Queued:      summary.Queued,
		Transferred: summary.Transferred,
		Failed:      summary.Failed,
		Orphans:     summary.Orphans,
		Bytes:       summary.Bytes,
		Duration:    summary.Duration.Round(time.Millisecond).String(),
		Method:      summary.Method,
	}, nil
}
