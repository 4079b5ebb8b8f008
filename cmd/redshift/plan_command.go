package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"redshift/internal/syncer"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var (
		skipScan   bool
		exportPath string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a sync session would transfer without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeStore, err := ctx.directEngine()
			if err != nil {
				return err
			}
			defer closeStore()

			plan, err := engine.Plan(cmdContext(), skipScan)
			if err != nil {
				return err
			}

			if exportPath != "" {
				cfg := ctx.configValue()
				if err := syncer.ExportManifest(exportPath, plan, cfg.Sync.TransferMethod); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote manifest to %s\n", exportPath)
			}

			if jsonOut {
				return writeJSON(cmd, plan)
			}

			stdout := cmd.OutOrStdout()
			if len(plan.Transfers) == 0 {
				fmt.Fprintln(stdout, "Nothing to transfer; device is up to date")
			} else {
				rows := make([][]string, 0, len(plan.Transfers))
				for _, item := range plan.Transfers {
					rows = append(rows, []string{item.Path, item.Reason, humanBytes(item.Size)})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Path", "Reason", "Size"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
			}

			fmt.Fprintf(stdout, "queued: %d (%s)  unchanged: %d  duplicates: %d  pending: %d  orphans: %d\n",
				len(plan.Transfers), humanBytes(plan.TotalBytes), plan.Unchanged, plan.Duplicates, plan.Pending, len(plan.Orphans))
			if plan.StalePending > 0 {
				fmt.Fprintf(stdout, "stale pending: %d (library file deleted; run `redshift ledger refresh`)\n", plan.StalePending)
			}
			fmt.Fprintf(stdout, "health: %s/100\n", strconv.Itoa(plan.HealthScore))
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipScan, "skip-scan", false, "Plan from the existing snapshot without rescanning")
	cmd.Flags().StringVar(&exportPath, "export", "", "Write the plan as a JSON manifest (.gz compresses)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}
