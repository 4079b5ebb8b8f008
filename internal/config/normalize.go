package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLibrary()
	if err := c.normalizeDevice(); err != nil {
		return err
	}
	c.normalizeSync()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutboxDir) == "" {
		c.Paths.OutboxDir = defaultOutboxDir
	}
	if c.Paths.OutboxDir, err = expandPath(c.Paths.OutboxDir); err != nil {
		return fmt.Errorf("paths.outbox_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLibrary() {
	if len(c.Library.Extensions) == 0 {
		c.Library.Extensions = append([]string(nil), defaultExtensions...)
	}
	normalized := make([]string, 0, len(c.Library.Extensions))
	seen := make(map[string]struct{}, len(c.Library.Extensions))
	for _, ext := range c.Library.Extensions {
		value := strings.ToLower(strings.TrimSpace(ext))
		if value == "" {
			continue
		}
		if !strings.HasPrefix(value, ".") {
			value = "." + value
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		normalized = append(normalized, value)
	}
	if len(normalized) == 0 {
		normalized = append([]string(nil), defaultExtensions...)
	}
	c.Library.Extensions = normalized

	if c.Library.WatchDebounceSeconds <= 0 {
		c.Library.WatchDebounceSeconds = defaultWatchDebounceSeconds
	}
}

func (c *Config) normalizeDevice() error {
	c.Device.VendorID = strings.ToLower(strings.TrimSpace(c.Device.VendorID))
	if c.Device.VendorID == "" {
		c.Device.VendorID = defaultVendorID
	}
	c.Device.DeviceID = strings.TrimSpace(c.Device.DeviceID)
	c.Device.BridgeBinary = strings.TrimSpace(c.Device.BridgeBinary)
	if c.Device.BridgeBinary == "" {
		c.Device.BridgeBinary = defaultBridgeBinary
	}
	c.Device.MountDir = strings.TrimSpace(c.Device.MountDir)
	if c.Device.MountDir != "" {
		expanded, err := expandPath(c.Device.MountDir)
		if err != nil {
			return fmt.Errorf("device.mount_dir: %w", err)
		}
		c.Device.MountDir = expanded
	}
	c.Device.MediaDir = strings.Trim(strings.TrimSpace(c.Device.MediaDir), "/")
	if c.Device.MediaDir == "" {
		c.Device.MediaDir = defaultDeviceMediaDir
	}
	c.Device.SandboxDir = strings.Trim(strings.TrimSpace(c.Device.SandboxDir), "/")
	if c.Device.SandboxDir == "" {
		c.Device.SandboxDir = defaultDeviceSandboxDir
	}
	if c.Device.PollFastInterval <= 0 {
		c.Device.PollFastInterval = defaultPollFastInterval
	}
	if c.Device.PollSlowInterval <= 0 {
		c.Device.PollSlowInterval = defaultPollSlowInterval
	}
	if c.Device.BridgeTimeout <= 0 {
		c.Device.BridgeTimeout = defaultBridgeTimeout
	}
	if c.Device.BridgeListTimeout <= 0 {
		c.Device.BridgeListTimeout = defaultBridgeListTimeout
	}
	if c.Device.BridgePushTimeout <= 0 {
		c.Device.BridgePushTimeout = defaultBridgePushTimeout
	}
	if c.Device.MinFreeSpaceMiB <= 0 {
		c.Device.MinFreeSpaceMiB = defaultMinFreeSpaceMiB
	}
	return nil
}

func (c *Config) normalizeSync() {
	c.Sync.TransferMethod = strings.ToLower(strings.TrimSpace(c.Sync.TransferMethod))
	if c.Sync.TransferMethod == "" {
		c.Sync.TransferMethod = defaultTransferMethod
	}
	if c.Sync.MaxBatchFiles <= 0 {
		c.Sync.MaxBatchFiles = defaultMaxBatchFiles
	}
	if c.Sync.ExtractWorkers <= 0 {
		c.Sync.ExtractWorkers = defaultExtractWorkers
	}
	if c.Sync.ExtractBatch <= 0 {
		c.Sync.ExtractBatch = defaultExtractBatch
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
