package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"redshift/internal/config"
	"redshift/internal/daemon"
	"redshift/internal/ipc"
	"redshift/internal/store"
	"redshift/internal/syncer"
	"redshift/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	baseDir    string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfg := testsupport.NewConfig(t)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	d, err := daemon.New(cfg, st, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(base, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      st,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		baseDir:    base,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})

	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got %q", want, output)
	}
}

func TestCLIStatusViaDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon")
	requireContains(t, out, "none attached")
	requireContains(t, out, "0 cached")
}

func TestCLIScanAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LibraryDir, "track.mp3"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}

	out, _, err := runCLI(t, []string{"scan"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "new: 1")

	out, _, err = runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No sync sessions recorded")
}

func TestCLIManualSyncAndLedger(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LibraryDir, "song.mp3"), []byte("tape hiss"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}

	out, _, err := runCLI(t, []string{"sync", "--method", "manual"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sync manual: %v", err)
	}
	requireContains(t, out, "transferred: 1")

	if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutboxDir, "song.mp3")); err != nil {
		t.Fatalf("expected staged file in outbox: %v", err)
	}

	out, _, err = runCLI(t, []string{"ledger", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	requireContains(t, out, "song.mp3")
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"ledger", "confirm"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("ledger confirm: %v", err)
	}
	requireContains(t, out, "Confirmed 1 pending transfers")
}

func TestCLILedgerExport(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LibraryDir, "export-me.mp3"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}

	target := filepath.Join(env.baseDir, "manifest.json.gz")
	out, _, err := runCLI(t, []string{"ledger", "export", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("ledger export: %v", err)
	}
	requireContains(t, out, "1 queued")

	manifest, err := syncer.ReadManifest(target)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(manifest.Items) != 1 || manifest.Items[0].Path != "export-me.mp3" {
		t.Fatalf("unexpected manifest items: %+v", manifest.Items)
	}
}

func TestCLIDevicesEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"devices"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	requireContains(t, out, "No devices attached")
}

func TestCLIDBHealth(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"db-health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("db-health: %v", err)
	}
	requireContains(t, out, "[OK]")
}

func TestCLITestNotifyUnconfigured(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}
