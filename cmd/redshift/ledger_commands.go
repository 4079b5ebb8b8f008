package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"redshift/internal/config"
	"redshift/internal/ipc"
	"redshift/internal/store"
	"redshift/internal/syncer"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the transfer ledger",
	}

	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerRefreshCommand(ctx))
	ledgerCmd.AddCommand(newLedgerConfirmCommand(ctx))
	ledgerCmd.AddCommand(newLedgerExportCommand(ctx))
	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var (
		deviceID string
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transferred and pending files recorded for a device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				target := deviceID
				if target == "" {
					target = cfg.Device.DeviceID
				}
				records, err := st.LedgerRecords(cmd.Context(), target)
				if err != nil {
					return err
				}

				paths := make([]string, 0, len(records))
				for path := range records {
					paths = append(paths, path)
				}
				sort.Strings(paths)

				if jsonOut {
					ordered := make([]store.TransferRecord, 0, len(paths))
					for _, path := range paths {
						ordered = append(ordered, records[path])
					}
					return writeJSON(cmd, ordered)
				}

				stdout := cmd.OutOrStdout()
				if len(paths) == 0 {
					fmt.Fprintln(stdout, "Ledger is empty")
					return nil
				}
				rows := make([][]string, 0, len(paths))
				for _, path := range paths {
					record := records[path]
					rows = append(rows, []string{
						record.Path,
						string(record.Status),
						record.Method,
						record.TransferredAt.Format(time.RFC3339),
						humanBytes(record.Size),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Path", "Status", "Method", "Transferred", "Size"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "", "Device UDID (defaults to the configured device)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newLedgerRefreshCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Drop ledger rows whose library file no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := runLedgerRefresh(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checked %d ledger rows; dropped %d\n",
				resp.Checked, resp.Dropped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func runLedgerRefresh(ctx *commandContext) (*ipc.RefreshLedgerResponse, error) {
	if ctx.daemonRunning() {
		var resp *ipc.RefreshLedgerResponse
		err := ctx.withClient(func(client *ipc.Client) error {
			var clientErr error
			resp, clientErr = client.RefreshLedger()
			return clientErr
		})
		return resp, err
	}

	engine, closeStore, err := ctx.directEngine()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	result, err := engine.RefreshLedger(cmdContext())
	if err != nil {
		return nil, err
	}
	return &ipc.RefreshLedgerResponse{
		Checked: result.Checked,
		Dropped: result.Dropped,
	}, nil
}

func newLedgerExportCommand(ctx *commandContext) *cobra.Command {
	var skipScan bool

	cmd := &cobra.Command{
		Use:   "export PATH",
		Short: "Write the current transfer plan as a JSON manifest",
		Long: "Builds the transfer plan and writes it to PATH as JSON. A .gz suffix\n" +
			"compresses the manifest. Useful for driving the manual transfer flow\n" +
			"from other tooling.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeStore, err := ctx.directEngine()
			if err != nil {
				return err
			}
			defer closeStore()

			plan, err := engine.Plan(cmd.Context(), skipScan)
			if err != nil {
				return err
			}
			cfg := ctx.configValue()
			if err := syncer.ExportManifest(args[0], plan, cfg.Sync.TransferMethod); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote manifest with %d queued files to %s\n",
				len(plan.Transfers), args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipScan, "skip-scan", false, "Plan from the existing snapshot without rescanning")
	return cmd
}

func newLedgerConfirmCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm [path ...]",
		Short: "Mark staged manual transfers as completed",
		Long: "Promotes pending manual-transfer rows to completed after the outbox\n" +
			"contents have been moved to the device. With no arguments every pending\n" +
			"row for the target device is confirmed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeStore, err := ctx.directEngine()
			if err != nil {
				return err
			}
			defer closeStore()

			confirmed, err := engine.ConfirmManual(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Confirmed %d pending transfers\n", confirmed)
			return nil
		},
	}
	return cmd
}
