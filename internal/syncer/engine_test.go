package syncer

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"

	"redshift/internal/device"
	"redshift/internal/store"
)

// fakeBridge implements device.Gateway against an in-memory file tree.
type fakeBridge struct {
	mu      sync.Mutex
	files   map[string]int64 // remote path -> size
	fail    map[string]error // local path suffix -> error
	pushes  []string
	removed []string
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{files: make(map[string]int64), fail: make(map[string]error)}
}

func (b *fakeBridge) ListDevices(ctx context.Context) ([]device.Info, error) {
	return []device.Info{{UDID: "dev-1", Name: "Test iPod"}}, nil
}

func (b *fakeBridge) DeviceName(ctx context.Context, udid string) (string, error) {
	return "Test iPod", nil
}

func (b *fakeBridge) ListFiles(ctx context.Context, udid, dir string) ([]device.RemoteFile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var files []device.RemoteFile
	for remote, size := range b.files {
		files = append(files, device.RemoteFile{Path: remote, Size: size})
	}
	return files, nil
}

func (b *fakeBridge) Push(ctx context.Context, udid, localPath, remotePath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for suffix, err := range b.fail {
		if path.Base(localPath) == suffix {
			return err
		}
	}
	b.files[remotePath] = 1
	b.pushes = append(b.pushes, remotePath)
	return nil
}

func (b *fakeBridge) PushSandbox(ctx context.Context, udid, localPath, remotePath string) error {
	return b.Push(ctx, udid, localPath, remotePath)
}

func (b *fakeBridge) Pull(ctx context.Context, udid, remotePath, localPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[remotePath]; !ok {
		return errors.New("remote file missing")
	}
	return nil
}

func (b *fakeBridge) Remove(ctx context.Context, udid, remotePath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, remotePath)
	b.removed = append(b.removed, remotePath)
	return nil
}

func TestSessionTransfersAndIsIdempotent(t *testing.T) {
	cfg := newTestConfig(t)
	st := newTestStore(t, cfg)
	bridge := newFakeBridge()
	engine := NewEngine(cfg, st, StaticDevice(device.Info{UDID: "dev-1"}), bridge, NoopSink{}, nil)

	writeLibraryFile(t, cfg, "Artist/01 One.mp3", []byte("one"))
	writeLibraryFile(t, cfg, "Artist/02 Two.mp3", []byte("two"))

	summary, err := engine.StartSession(context.Background(), SessionOptions{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if summary.Transferred != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	again, err := engine.StartSession(context.Background(), SessionOptions{})
	if err != nil {
		t.Fatalf("second StartSession: %v", err)
	}
	if again.Queued != 0 || again.Transferred != 0 {
		t.Fatalf("second session should be a no-op, got %+v", again)
	}

	sessions, err := st.Sessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 recorded sessions, got %d", len(sessions))
	}
}

func TestSessionSingleFlight(t *testing.T) {
	cfg := newTestConfig(t)
	st := newTestStore(t, cfg)
	engine := NewEngine(cfg, st, StaticDevice(device.Info{UDID: "dev-1"}), newFakeBridge(), NoopSink{}, nil)

	if err := engine.acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer engine.release()

	if _, err := engine.StartSession(context.Background(), SessionOptions{}); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
}

func TestSessionRequiresDeviceForDirectMethod(t *testing.T) {
	cfg := newTestConfig(t)
	st := newTestStore(t, cfg)
	engine := NewEngine(cfg, st, NoDevice(), newFakeBridge(), NoopSink{}, nil)

	writeLibraryFile(t, cfg, "a.mp3", []byte("audio"))
	if _, err := engine.StartSession(context.Background(), SessionOptions{}); !errors.Is(err, device.ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
}

func TestSessionManualMethodWorksWithoutDevice(t *testing.T) {
	cfg := newTestConfig(t)
	st := newTestStore(t, cfg)
	engine := NewEngine(cfg, st, NoDevice(), nil, NoopSink{}, nil)

	writeLibraryFile(t, cfg, "a.mp3", []byte("audio"))
	summary, err := engine.StartSession(context.Background(), SessionOptions{Method: "manual"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if summary.Transferred != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 1 || stats.Transferred != 0 {
		t.Fatalf("manual transfers must be pending, got %+v", stats)
	}
}

func TestConfirmManualPromotesPending(t *testing.T) {
	cfg := newTestConfig(t)
	st := newTestStore(t, cfg)
	engine := NewEngine(cfg, st, NoDevice(), nil, NoopSink{}, nil)

	writeLibraryFile(t, cfg, "a.mp3", []byte("audio"))
	if _, err := engine.StartSession(context.Background(), SessionOptions{Method: "manual"}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	promoted, err := engine.ConfirmManual(context.Background(), nil)
	if err != nil {
		t.Fatalf("ConfirmManual: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("expected 1 promotion, got %d", promoted)
	}

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 0 || stats.Transferred != 1 {
		t.Fatalf("unexpected stats after confirm %+v", stats)
	}
}

func TestPreIndexSeedsLedger(t *testing.T) {
	cfg := newTestConfig(t)
	st := newTestStore(t, cfg)
	bridge := newFakeBridge()
	engine := NewEngine(cfg, st, StaticDevice(device.Info{UDID: "dev-1"}), bridge, NoopSink{}, nil)

	writeLibraryFile(t, cfg, "Artist/01 Already There.mp3", []byte("old"))
	writeLibraryFile(t, cfg, "Artist/02 Missing.mp3", []byte("new"))
	if _, err := engine.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	// The device already holds the first track under its own layout.
	bridge.files["F00/Already There.mp3"] = 3

	result, err := engine.PreIndex(context.Background())
	if err != nil {
		t.Fatalf("PreIndex: %v", err)
	}
	if result.Seeded != 1 {
		t.Fatalf("expected 1 seeded row, got %+v", result)
	}

	plan, err := engine.Plan(context.Background(), true)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Transfers) != 1 {
		t.Fatalf("expected only the missing track to transfer, got %v", plan.Transfers)
	}
	if plan.Transfers[0].Path != "Artist/02 Missing.mp3" {
		t.Fatalf("unexpected transfer %+v", plan.Transfers[0])
	}
}

func TestPreIndexIgnoresNameMatchWithDifferentSize(t *testing.T) {
	cfg := newTestConfig(t)
	st := newTestStore(t, cfg)
	bridge := newFakeBridge()
	engine := NewEngine(cfg, st, StaticDevice(device.Info{UDID: "dev-1"}), bridge, NoopSink{}, nil)

	writeLibraryFile(t, cfg, "Artist/01 Same Name.mp3", []byte("local edition"))
	if _, err := engine.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	// The device holds a track with the same normalized name but a
	// different size; that is not the same file.
	bridge.files["F00/Same Name.mp3"] = 999999

	result, err := engine.PreIndex(context.Background())
	if err != nil {
		t.Fatalf("PreIndex: %v", err)
	}
	if result.Seeded != 0 {
		t.Fatalf("size mismatch must not seed, got %+v", result)
	}

	plan, err := engine.Plan(context.Background(), true)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Transfers) != 1 {
		t.Fatalf("expected the local edition to still transfer, got %v", plan.Transfers)
	}
}

func TestRefreshLedgerDropsMissingLibraryFiles(t *testing.T) {
	cfg := newTestConfig(t)
	st := newTestStore(t, cfg)
	bridge := newFakeBridge()
	engine := NewEngine(cfg, st, StaticDevice(device.Info{UDID: "dev-1"}), bridge, NoopSink{}, nil)

	writeLibraryFile(t, cfg, "Artist/01 Kept.mp3", []byte("audio"))
	seed := []store.TransferRecord{
		{Path: "Artist/01 Kept.mp3", Size: 5, MTime: 1, Method: "direct", DeviceID: "dev-1"},
		{Path: "Artist/02 Deleted.mp3", Size: 10, MTime: 1, Method: "direct", DeviceID: "dev-1"},
		{Path: "Artist/03 Staged.mp3", Size: 10, MTime: 1, Method: "manual", DeviceID: "dev-1", Status: store.StatusPending},
	}
	if err := st.InsertTransfers(context.Background(), seed); err != nil {
		t.Fatalf("InsertTransfers: %v", err)
	}

	result, err := engine.RefreshLedger(context.Background())
	if err != nil {
		t.Fatalf("RefreshLedger: %v", err)
	}
	if result.Checked != 3 || result.Dropped != 2 {
		t.Fatalf("expected 3 checked and 2 dropped, got %+v", result)
	}

	ledger, err := st.LedgerRecords(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("LedgerRecords: %v", err)
	}
	// The kept track is absent from the device listing; a refresh still
	// keeps it because only the local file decides.
	if _, ok := ledger["Artist/01 Kept.mp3"]; !ok {
		t.Fatal("row with a present library file must survive")
	}
	if _, ok := ledger["Artist/02 Deleted.mp3"]; ok {
		t.Fatal("row for a deleted library file must be dropped")
	}
	if _, ok := ledger["Artist/03 Staged.mp3"]; ok {
		t.Fatal("stale pending row must be dropped")
	}
}

func TestStatusReportsHealthAndDevice(t *testing.T) {
	cfg := newTestConfig(t)
	st := newTestStore(t, cfg)
	bridge := newFakeBridge()
	engine := NewEngine(cfg, st, StaticDevice(device.Info{UDID: "dev-1", Name: "Test iPod"}), bridge, NoopSink{}, nil)

	writeLibraryFile(t, cfg, "a.mp3", []byte("one"))
	writeLibraryFile(t, cfg, "b.mp3", []byte("two"))
	if _, err := engine.StartSession(context.Background(), SessionOptions{}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	status, err := engine.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Device == nil || status.Device.UDID != "dev-1" {
		t.Fatalf("unexpected device %+v", status.Device)
	}
	if status.Stats.CachedFiles != 2 || status.Stats.Transferred != 2 {
		t.Fatalf("unexpected stats %+v", status.Stats)
	}
	if status.HealthScore != 100 {
		t.Fatalf("expected full health, got %d", status.HealthScore)
	}
	if status.LastSession == nil {
		t.Fatal("expected last session to be reported")
	}
}
