package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	OutboxDir  string `toml:"outbox_dir"`
}

// Library contains configuration for the local music library scan.
type Library struct {
	Extensions           []string `toml:"extensions"`
	Watch                bool     `toml:"watch"`
	WatchDebounceSeconds int      `toml:"watch_debounce_seconds"`
	ScanOnStart          bool     `toml:"scan_on_start"`
}

// Device contains configuration for device detection and bridge access.
type Device struct {
	VendorID           string `toml:"vendor_id"`
	DeviceID           string `toml:"device_id"`
	BridgeBinary       string `toml:"bridge_binary"`
	MountDir           string `toml:"mount_dir"`
	MediaDir           string `toml:"media_dir"`
	SandboxDir         string `toml:"sandbox_dir"`
	PollFastInterval   int    `toml:"poll_fast_interval"`
	PollSlowInterval   int    `toml:"poll_slow_interval"`
	BridgeTimeout      int    `toml:"bridge_timeout"`
	BridgeListTimeout  int    `toml:"bridge_list_timeout"`
	BridgePushTimeout  int    `toml:"bridge_push_timeout"`
	NetlinkDisabled    bool   `toml:"netlink_disabled"`
	MinFreeSpaceMiB    int64  `toml:"min_free_space_mib"`
	UnrecognizedNotice bool   `toml:"unrecognized_notice"`
}

// Sync contains configuration for sync planning and transfer execution.
type Sync struct {
	TransferMethod  string `toml:"transfer_method"`
	MaxBatchFiles   int    `toml:"max_batch_files"`
	CleanupOrphaned bool   `toml:"cleanup_orphaned"`
	ExtractWorkers  int    `toml:"extract_workers"`
	ExtractBatch    int    `toml:"extract_batch"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Device         bool   `toml:"device"`
	Sync           bool   `toml:"sync"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for RedShift.
//
// Configuration sections by subsystem:
//   - Paths: library root, durable state, logs, manual-transfer outbox
//   - Library: scan extensions and filesystem watch behavior
//   - Device: vendor filter, bridge utility, polling intervals
//   - Sync: transfer method, batch cap, metadata extraction pool
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Library       Library       `toml:"library"`
	Device        Device        `toml:"device"`
	Sync          Sync          `toml:"sync"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/redshift/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("redshift.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// the library volume is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.OutboxDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// DatabasePath returns the location of the sync database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "sync.db")
}

// SocketPath returns the location of the daemon IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "redshiftd.sock")
}

// LockPath returns the location of the daemon instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "redshiftd.lock")
}

// ExtensionSet returns the supported audio extensions as a lookup set,
// lowercased and dot-prefixed.
func (c *Config) ExtensionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Library.Extensions))
	for _, ext := range c.Library.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		set[normalized] = struct{}{}
	}
	return set
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
