package config

const (
	defaultLibraryDir           = "~/Music/RedShiftMaster"
	defaultStateDir             = "~/.local/share/redshift"
	defaultLogDir               = "~/.local/share/redshift/logs"
	defaultOutboxDir            = "~/Music/RedShiftSync"
	defaultVendorID             = "05ac"
	defaultBridgeBinary         = "rsbridge"
	defaultDeviceMediaDir       = "Media/iTunes_Control/Music"
	defaultDeviceSandboxDir     = "Documents/Music"
	defaultPollFastInterval     = 3
	defaultPollSlowInterval     = 30
	defaultBridgeTimeout        = 15
	defaultBridgeListTimeout    = 120
	defaultBridgePushTimeout    = 600
	defaultMinFreeSpaceMiB      = 64
	defaultTransferMethod       = "direct"
	defaultMaxBatchFiles        = 100
	defaultExtractWorkers       = 4
	defaultExtractBatch         = 32
	defaultWatchDebounceSeconds = 5
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

var defaultExtensions = []string{".mp3", ".m4a", ".flac", ".wav", ".aac", ".m4p", ".ogg", ".opus"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			OutboxDir:  defaultOutboxDir,
		},
		Library: Library{
			Extensions:           append([]string(nil), defaultExtensions...),
			Watch:                true,
			WatchDebounceSeconds: defaultWatchDebounceSeconds,
			ScanOnStart:          true,
		},
		Device: Device{
			VendorID:           defaultVendorID,
			BridgeBinary:       defaultBridgeBinary,
			MediaDir:           defaultDeviceMediaDir,
			SandboxDir:         defaultDeviceSandboxDir,
			PollFastInterval:   defaultPollFastInterval,
			PollSlowInterval:   defaultPollSlowInterval,
			BridgeTimeout:      defaultBridgeTimeout,
			BridgeListTimeout:  defaultBridgeListTimeout,
			BridgePushTimeout:  defaultBridgePushTimeout,
			MinFreeSpaceMiB:    defaultMinFreeSpaceMiB,
			UnrecognizedNotice: true,
		},
		Sync: Sync{
			TransferMethod: defaultTransferMethod,
			MaxBatchFiles:  defaultMaxBatchFiles,
			ExtractWorkers: defaultExtractWorkers,
			ExtractBatch:   defaultExtractBatch,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Device:         true,
			Sync:           true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
