package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redshift/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, device, and library status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := fetchStatus(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("RedShift Status", colorize) {
				fmt.Fprintln(stdout, line)
			}

			daemonKind := statusWarn
			daemonDetail := "not running; one-shot mode"
			if resp.Running {
				daemonKind = statusOK
				daemonDetail = fmt.Sprintf("pid %d", resp.PID)
			}
			fmt.Fprintln(stdout, renderStatusLine("Daemon", daemonKind, daemonDetail, colorize))

			if resp.Device != nil {
				fmt.Fprintln(stdout, renderStatusLine("Device", statusOK,
					fmt.Sprintf("%s (%s)", resp.Device.Name, resp.Device.UDID), colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Device", statusInfo, "none attached", colorize))
			}

			syncDetail := "idle"
			if resp.SyncActive {
				syncDetail = "session in progress"
			}
			fmt.Fprintln(stdout, renderStatusLine("Sync", statusInfo, syncDetail, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Library", statusInfo,
				fmt.Sprintf("%d cached, %d transferred, %d pending", resp.CachedFiles, resp.Transferred, resp.Pending), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Health", healthKind(resp.HealthScore),
				fmt.Sprintf("%d/100", resp.HealthScore), colorize))

			if last := resp.LastSession; last != nil {
				fmt.Fprintln(stdout, renderStatusLine("Last session", statusInfo,
					fmt.Sprintf("%s: %d transferred, %d failed (%s)", last.StartedAt, last.FilesTransferred, last.FilesFailed, last.Method), colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, resp.DBPath, colorize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

// fetchStatus asks the daemon when it is running and falls back to reading
// the store directly otherwise.
func fetchStatus(ctx *commandContext) (*ipc.StatusResponse, error) {
	if ctx.daemonRunning() {
		var resp *ipc.StatusResponse
		err := ctx.withClient(func(client *ipc.Client) error {
			var clientErr error
			resp, clientErr = client.Status()
			return clientErr
		})
		return resp, err
	}

	engine, closeStore, err := ctx.directEngine()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	status, err := engine.Status(cmdContext())
	if err != nil {
		return nil, err
	}

	cfg := ctx.configValue()
	resp := &ipc.StatusResponse{
		Running:     false,
		SyncActive:  status.SyncActive,
		CachedFiles: status.Stats.CachedFiles,
		Transferred: status.Stats.Transferred,
		Pending:     status.Stats.Pending,
		HealthScore: status.HealthScore,
		DBPath:      cfg.DatabasePath(),
		LockPath:    cfg.LockPath(),
	}
	if status.Device != nil {
		resp.Device = &ipc.DeviceStatus{
			UDID:      status.Device.UDID,
			Name:      status.Device.Name,
			ProductID: status.Device.ProductID,
		}
	}
	if status.LastSession != nil {
		last := sessionStatusFromRecord(*status.LastSession)
		resp.LastSession = &last
	}
	return resp, nil
}
