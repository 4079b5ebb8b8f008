// Package testsupport provides shared helpers for package tests: temp-dir
// configs, library fixtures, and store setup.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"redshift/internal/config"
	"redshift/internal/store"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Monitors and watchers that would touch real hardware are disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.OutboxDir = filepath.Join(base, "outbox")
	cfgVal.Library.Watch = false
	cfgVal.Library.ScanOnStart = false
	cfgVal.Device.NetlinkDisabled = true
	cfgVal.Device.BridgeBinary = "redshift-test-missing-bridge"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := os.MkdirAll(builder.cfg.Paths.LibraryDir, 0o755); err != nil {
		t.Fatalf("mkdir library dir: %v", err)
	}
	return builder.cfg
}

// WithTransferMethod sets the configured transfer method.
func WithTransferMethod(method string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.TransferMethod = method
	}
}

// WithDevicePin pins the target device UDID.
func WithDevicePin(udid string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.DeviceID = udid
	}
}

// WithStubbedBridge writes a stub bridge executable that exits successfully
// with empty output and points the config at it.
func WithStubbedBridge() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "rsbridge")
		script := []byte("#!/bin/sh\necho '[]'\nexit 0\n")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write stub bridge: %v", err)
		}
		b.cfg.Device.BridgeBinary = target
	}
}

// MustOpenStore opens the store for the config and closes it on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// WriteLibraryFile creates a file under the library root and returns its
// absolute path.
func WriteLibraryFile(t testing.TB, cfg *config.Config, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(cfg.Paths.LibraryDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}
