package config

import (
	"errors"
	"fmt"
	"strings"
)

// Supported transfer methods.
const (
	TransferMethodDirect  = "direct"
	TransferMethodSandbox = "sandbox"
	TransferMethodManual  = "manual"
)

var transferMethods = map[string]struct{}{
	TransferMethodDirect:  {},
	TransferMethodSandbox: {},
	TransferMethodManual:  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateDevice() error {
	if strings.TrimSpace(c.Device.VendorID) == "" {
		return errors.New("device.vendor_id must be set")
	}
	if err := ensurePositiveMap(map[string]int{
		"device.poll_fast_interval":  c.Device.PollFastInterval,
		"device.poll_slow_interval":  c.Device.PollSlowInterval,
		"device.bridge_timeout":      c.Device.BridgeTimeout,
		"device.bridge_list_timeout": c.Device.BridgeListTimeout,
		"device.bridge_push_timeout": c.Device.BridgePushTimeout,
	}); err != nil {
		return err
	}
	if c.Device.PollSlowInterval < c.Device.PollFastInterval {
		return errors.New("device.poll_slow_interval must not be shorter than device.poll_fast_interval")
	}
	return nil
}

func (c *Config) validateSync() error {
	if _, ok := transferMethods[c.Sync.TransferMethod]; !ok {
		return fmt.Errorf("sync.transfer_method: unsupported value %q (expected direct, sandbox, or manual)", c.Sync.TransferMethod)
	}
	if err := ensurePositiveMap(map[string]int{
		"sync.max_batch_files":          c.Sync.MaxBatchFiles,
		"sync.extract_workers":          c.Sync.ExtractWorkers,
		"sync.extract_batch":            c.Sync.ExtractBatch,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive (seconds)", key)
		}
	}
	return nil
}
