package ipc_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"redshift/internal/device"
	"redshift/internal/ipc"
	"redshift/internal/library"
	"redshift/internal/store"
	"redshift/internal/syncer"
)

type fakeController struct {
	status      syncer.Status
	statusErr   error
	scanSummary library.Summary
	syncSummary syncer.Summary
	syncErr     error
	devices     []device.Info
	sessions    []store.SessionRecord
	health      store.DatabaseHealth
	stopped     atomic.Bool
	lastOpts    syncer.SessionOptions
}

func (f *fakeController) Status(ctx context.Context) (syncer.Status, error) {
	return f.status, f.statusErr
}

func (f *fakeController) Scan(ctx context.Context) (library.Summary, error) {
	return f.scanSummary, nil
}

func (f *fakeController) StartSync(ctx context.Context, opts syncer.SessionOptions) (syncer.Summary, error) {
	f.lastOpts = opts
	return f.syncSummary, f.syncErr
}

func (f *fakeController) PreIndex(ctx context.Context) (syncer.PreIndexResult, error) {
	return syncer.PreIndexResult{Strategy: "bridge", Indexed: 7, Seeded: 3}, nil
}

func (f *fakeController) RefreshLedger(ctx context.Context) (syncer.RefreshResult, error) {
	return syncer.RefreshResult{Checked: 10, Dropped: 2}, nil
}

func (f *fakeController) Devices() []device.Info { return f.devices }

func (f *fakeController) Sessions(ctx context.Context, limit int) ([]store.SessionRecord, error) {
	return f.sessions, nil
}

func (f *fakeController) DatabaseHealth(ctx context.Context) (store.DatabaseHealth, error) {
	return f.health, nil
}

func (f *fakeController) TestNotification(ctx context.Context) (bool, string, error) {
	return true, "sent", nil
}

func (f *fakeController) LockPath() string { return "/tmp/redshiftd.lock" }
func (f *fakeController) DBPath() string   { return "/tmp/sync.db" }
func (f *fakeController) RequestShutdown() { f.stopped.Store(true) }

func startServer(t *testing.T, controller ipc.Controller) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "redshiftd.sock")
	server, err := ipc.NewServer(context.Background(), socket, controller, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)
	return socket
}

func dial(t *testing.T, socket string) *ipc.Client {
	t.Helper()
	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestStatusRoundTrip(t *testing.T) {
	controller := &fakeController{
		status: syncer.Status{
			SyncActive:  true,
			Stats:       store.Stats{CachedFiles: 42, Transferred: 40, Pending: 1},
			HealthScore: 95,
			Device:      &device.Info{UDID: "dev-1", Name: "Test iPod"},
		},
	}
	client := dial(t, startServer(t, controller))

	resp, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !resp.Running || !resp.SyncActive {
		t.Fatalf("unexpected flags %+v", resp)
	}
	if resp.CachedFiles != 42 || resp.HealthScore != 95 {
		t.Fatalf("unexpected stats %+v", resp)
	}
	if resp.Device == nil || resp.Device.Name != "Test iPod" {
		t.Fatalf("unexpected device %+v", resp.Device)
	}
}

func TestSyncStartForwardsOptions(t *testing.T) {
	controller := &fakeController{
		syncSummary: syncer.Summary{SessionID: "s-1", Queued: 5, Transferred: 5, Method: "sandbox"},
	}
	client := dial(t, startServer(t, controller))

	resp, err := client.SyncStart(ipc.SyncStartRequest{Method: "sandbox", CleanupOrphaned: true})
	if err != nil {
		t.Fatalf("SyncStart: %v", err)
	}
	if resp.SessionID != "s-1" || resp.Transferred != 5 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if controller.lastOpts.Method != "sandbox" || !controller.lastOpts.CleanupOrphaned {
		t.Fatalf("options not forwarded: %+v", controller.lastOpts)
	}
}

func TestSyncStartSurfacesErrors(t *testing.T) {
	controller := &fakeController{syncErr: errors.New("sync session already in progress")}
	client := dial(t, startServer(t, controller))

	if _, err := client.SyncStart(ipc.SyncStartRequest{}); err == nil {
		t.Fatal("expected error from server")
	}
}

func TestStopRequestsShutdown(t *testing.T) {
	controller := &fakeController{}
	client := dial(t, startServer(t, controller))

	resp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !resp.Stopped || !controller.stopped.Load() {
		t.Fatal("expected shutdown request to reach the controller")
	}
}

func TestDevicesAndPreIndex(t *testing.T) {
	controller := &fakeController{
		devices: []device.Info{{UDID: "dev-1", Name: "Test iPod", ProductID: "1261"}},
	}
	client := dial(t, startServer(t, controller))

	devices, err := client.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices.Devices) != 1 || devices.Devices[0].UDID != "dev-1" {
		t.Fatalf("unexpected devices %+v", devices)
	}

	preindex, err := client.PreIndex()
	if err != nil {
		t.Fatalf("PreIndex: %v", err)
	}
	if preindex.Seeded != 3 || preindex.Strategy != "bridge" {
		t.Fatalf("unexpected preindex %+v", preindex)
	}
}

func TestDialFailsWhenSocketMissing(t *testing.T) {
	if _, err := ipc.Dial(filepath.Join(t.TempDir(), "absent.sock")); err == nil {
		t.Fatal("expected dial error for missing socket")
	}
}
