package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"redshift/internal/config"
	"redshift/internal/store"
	"redshift/internal/syncer"
	"redshift/internal/testsupport"
)

func newTestDaemon(t *testing.T) (*Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	d, err := New(cfg, st, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, cfg
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newTestDaemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon to report stopped")
	}
	d.Stop()
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	d1, err := New(cfg, first, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d1.Close()
	if err := d1.Start(context.Background()); err != nil {
		t.Fatalf("Start first: %v", err)
	}

	second, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open second: %v", err)
	}
	d2, err := New(cfg, second, nil)
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	defer d2.Close()
	if err := d2.Start(context.Background()); err == nil {
		t.Fatal("expected second instance to fail on lock")
	}

	d1.Stop()
	if err := d2.Start(context.Background()); err != nil {
		t.Fatalf("expected lock to be free after Stop: %v", err)
	}
}

func TestDaemonScanAndStatus(t *testing.T) {
	d, cfg := newTestDaemon(t)
	ctx := context.Background()

	testsupport.WriteLibraryFile(t, cfg, "artist/track.mp3", []byte("audio"))

	summary, err := d.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.New != 1 {
		t.Fatalf("expected 1 new file, got %d", summary.New)
	}

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Stats.CachedFiles != 1 {
		t.Fatalf("expected 1 cached file, got %d", status.Stats.CachedFiles)
	}
	if status.Device != nil {
		t.Fatalf("expected no device, got %+v", status.Device)
	}
	if status.HealthScore != 0 {
		t.Fatalf("expected health 0 with nothing transferred, got %d", status.HealthScore)
	}
}

func TestDaemonManualSessionWithoutDevice(t *testing.T) {
	d, cfg := newTestDaemon(t)
	ctx := context.Background()

	testsupport.WriteLibraryFile(t, cfg, "song.mp3", []byte("tape hiss"))

	summary, err := d.StartSync(ctx, syncer.SessionOptions{Method: config.TransferMethodManual})
	if err != nil {
		t.Fatalf("StartSync: %v", err)
	}
	if summary.Transferred != 1 {
		t.Fatalf("expected 1 staged file, got %d", summary.Transferred)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutboxDir, "song.mp3")); err != nil {
		t.Fatalf("expected staged file in outbox: %v", err)
	}

	sessions, err := d.Sessions(ctx, 5)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Method != config.TransferMethodManual {
		t.Fatalf("unexpected session history: %+v", sessions)
	}
}

func TestDaemonDatabaseHealth(t *testing.T) {
	d, _ := newTestDaemon(t)

	health, err := d.DatabaseHealth(context.Background())
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !health.DatabaseExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.DBPath != d.DBPath() {
		t.Fatalf("DBPath mismatch: %q vs %q", health.DBPath, d.DBPath())
	}
}

func TestDaemonTestNotificationUnconfigured(t *testing.T) {
	d, _ := newTestDaemon(t)

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent || message != "ntfy topic not configured" {
		t.Fatalf("unexpected result: sent=%v message=%q", sent, message)
	}
}

func TestDaemonRequestShutdown(t *testing.T) {
	d, _ := newTestDaemon(t)

	select {
	case <-d.ShutdownRequested():
		t.Fatal("shutdown channel closed before request")
	default:
	}

	d.RequestShutdown()
	d.RequestShutdown()

	select {
	case <-d.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("shutdown channel not closed after request")
	}
}
