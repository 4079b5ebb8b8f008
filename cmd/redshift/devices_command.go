package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"redshift/internal/device"
	"redshift/internal/ipc"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := listDevices(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, devices)
			}

			stdout := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(stdout, "No devices attached")
				return nil
			}

			cfg := ctx.configValue()
			pinned := ""
			if cfg != nil {
				pinned = strings.TrimSpace(cfg.Device.DeviceID)
			}

			rows := make([][]string, 0, len(devices))
			for _, info := range devices {
				target := ""
				if pinned == "" || strings.EqualFold(info.UDID, pinned) {
					target = "*"
				}
				rows = append(rows, []string{target, info.Name, info.UDID, info.ProductID})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"", "Name", "UDID", "Product"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func listDevices(ctx *commandContext) ([]ipc.DeviceStatus, error) {
	if ctx.daemonRunning() {
		var resp *ipc.DevicesResponse
		err := ctx.withClient(func(client *ipc.Client) error {
			var clientErr error
			resp, clientErr = client.Devices()
			return clientErr
		})
		if err != nil {
			return nil, err
		}
		return resp.Devices, nil
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	gateway := device.NewGateway(cfg)
	infos, err := gateway.ListDevices(cmdContext())
	if err != nil {
		return nil, err
	}
	devices := make([]ipc.DeviceStatus, 0, len(infos))
	for _, info := range infos {
		if info.Name == "" {
			if name, nameErr := gateway.DeviceName(cmdContext(), info.UDID); nameErr == nil {
				info.Name = name
			}
		}
		devices = append(devices, ipc.DeviceStatus{
			UDID:      info.UDID,
			Name:      device.DisplayName(info, cfg.Device.VendorID),
			ProductID: info.ProductID,
		})
	}
	return devices, nil
}
