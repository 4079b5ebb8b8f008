package device

import (
	"context"
	"errors"
	"sync"
	"testing"

	"redshift/internal/config"
)

type fakeGateway struct {
	mu      sync.Mutex
	devices []Info
	err     error
	names   map[string]string
}

func (g *fakeGateway) setDevices(devices ...Info) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.devices = devices
}

func (g *fakeGateway) ListDevices(ctx context.Context) ([]Info, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return append([]Info(nil), g.devices...), nil
}

func (g *fakeGateway) DeviceName(ctx context.Context, udid string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if name, ok := g.names[udid]; ok {
		return name, nil
	}
	return "", errors.New("unknown device")
}

func (g *fakeGateway) ListFiles(ctx context.Context, udid, dir string) ([]RemoteFile, error) {
	return nil, nil
}

func (g *fakeGateway) Push(ctx context.Context, udid, localPath, remotePath string) error {
	return nil
}

func (g *fakeGateway) PushSandbox(ctx context.Context, udid, localPath, remotePath string) error {
	return nil
}

func (g *fakeGateway) Pull(ctx context.Context, udid, remotePath, localPath string) error {
	return nil
}

func (g *fakeGateway) Remove(ctx context.Context, udid, remotePath string) error {
	return nil
}

type recordingListener struct {
	mu           sync.Mutex
	attached     []Info
	detached     []Info
	unrecognized []Info
}

func (l *recordingListener) DeviceAttached(ctx context.Context, info Info) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attached = append(l.attached, info)
}

func (l *recordingListener) DeviceDetached(ctx context.Context, info Info) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detached = append(l.detached, info)
}

func (l *recordingListener) DeviceUnrecognized(ctx context.Context, info Info) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unrecognized = append(l.unrecognized, info)
}

func newTestMonitor(t *testing.T, gateway Gateway, listener Listener) (*Monitor, *config.Config) {
	t.Helper()
	cfg := config.Default()
	monitor := NewMonitor(&cfg, gateway, nil, listener)
	monitor.ctx = context.Background()
	return monitor, &cfg
}

func TestMonitorFiresAttachAndDetachOnce(t *testing.T) {
	gateway := &fakeGateway{}
	listener := &recordingListener{}
	monitor, _ := newTestMonitor(t, gateway, listener)

	gateway.setDevices(Info{UDID: "udid-1", Name: "My iPod", VendorID: "05ac", ProductID: "1261"})
	monitor.poll()
	monitor.poll()

	if len(listener.attached) != 1 {
		t.Fatalf("expected 1 attach, got %d", len(listener.attached))
	}
	if listener.attached[0].Name != "My iPod" {
		t.Fatalf("unexpected name %q", listener.attached[0].Name)
	}

	gateway.setDevices()
	monitor.poll()
	monitor.poll()

	if len(listener.detached) != 1 {
		t.Fatalf("expected 1 detach, got %d", len(listener.detached))
	}
	if len(monitor.Devices()) != 0 {
		t.Fatal("expected no tracked devices after detach")
	}
}

func TestMonitorIgnoresOtherVendors(t *testing.T) {
	gateway := &fakeGateway{}
	listener := &recordingListener{}
	monitor, _ := newTestMonitor(t, gateway, listener)

	gateway.setDevices(Info{UDID: "udid-x", VendorID: "1234", ProductID: "5678"})
	monitor.poll()

	if len(listener.attached) != 0 {
		t.Fatalf("expected no attach for foreign vendor, got %d", len(listener.attached))
	}
}

func TestMonitorResolvesNameThroughGateway(t *testing.T) {
	gateway := &fakeGateway{names: map[string]string{"udid-1": "Road Trip iPod"}}
	listener := &recordingListener{}
	monitor, _ := newTestMonitor(t, gateway, listener)

	gateway.setDevices(Info{UDID: "udid-1", VendorID: "05ac", ProductID: "1261"})
	monitor.poll()

	if len(listener.attached) != 1 {
		t.Fatalf("expected 1 attach, got %d", len(listener.attached))
	}
	if listener.attached[0].Name != "Road Trip iPod" {
		t.Fatalf("expected gateway name, got %q", listener.attached[0].Name)
	}
}

func TestMonitorFallsBackToProductTableName(t *testing.T) {
	gateway := &fakeGateway{}
	monitor, _ := newTestMonitor(t, gateway, nil)

	gateway.setDevices(Info{UDID: "udid-1", VendorID: "05ac", ProductID: "1261"})
	monitor.poll()

	devices := monitor.Devices()
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	if devices[0].Name != "iPod classic" {
		t.Fatalf("expected product table name, got %q", devices[0].Name)
	}
}

func TestMonitorUnrecognizedNoticeFiresOnce(t *testing.T) {
	gateway := &fakeGateway{}
	listener := &recordingListener{}
	monitor, cfg := newTestMonitor(t, gateway, listener)
	cfg.Device.UnrecognizedNotice = true

	gateway.setDevices(Info{UDID: "udid-1", VendorID: "05ac", ProductID: "ffff"})
	monitor.poll()
	gateway.setDevices()
	monitor.poll()
	gateway.setDevices(Info{UDID: "udid-1", VendorID: "05ac", ProductID: "ffff"})
	monitor.poll()

	if len(listener.unrecognized) != 1 {
		t.Fatalf("expected 1 unrecognized notice, got %d", len(listener.unrecognized))
	}
}

func TestMonitorIntervalFollowsPresence(t *testing.T) {
	gateway := &fakeGateway{}
	monitor, _ := newTestMonitor(t, gateway, nil)

	// No device attached: stay fast no matter how long the bus is quiet.
	for i := 0; i < 20; i++ {
		monitor.poll()
	}
	if got := monitor.interval(); got != monitor.fastInterval {
		t.Fatalf("expected fast interval with no device, got %v", got)
	}

	// Once a device attaches the next scheduled poll is slow.
	gateway.setDevices(Info{UDID: "udid-1", VendorID: "05ac", ProductID: "1261"})
	monitor.poll()
	if got := monitor.interval(); got != monitor.slowInterval {
		t.Fatalf("expected slow interval with device attached, got %v", got)
	}

	// Detach returns the monitor to fast detection.
	gateway.setDevices()
	monitor.poll()
	if got := monitor.interval(); got != monitor.fastInterval {
		t.Fatalf("expected fast interval after detach, got %v", got)
	}
}

func TestMonitorCurrentHonorsPinnedDevice(t *testing.T) {
	gateway := &fakeGateway{}
	monitor, cfg := newTestMonitor(t, gateway, nil)
	cfg.Device.DeviceID = "udid-2"

	gateway.setDevices(
		Info{UDID: "udid-1", VendorID: "05ac", ProductID: "1261"},
		Info{UDID: "udid-2", VendorID: "05ac", ProductID: "12a8"},
	)
	monitor.poll()

	current, err := monitor.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.UDID != "udid-2" {
		t.Fatalf("expected pinned device, got %q", current.UDID)
	}

	cfg.Device.DeviceID = "udid-9"
	if _, err := monitor.Current(); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
}

func TestMonitorBridgeUnavailableIsNotFatal(t *testing.T) {
	gateway := &fakeGateway{err: ErrBridgeUnavailable}
	listener := &recordingListener{}
	monitor, _ := newTestMonitor(t, gateway, listener)

	monitor.poll()
	monitor.poll()

	if len(listener.attached)+len(listener.detached) != 0 {
		t.Fatal("expected no callbacks while bridge unavailable")
	}

	gateway.mu.Lock()
	gateway.err = nil
	gateway.mu.Unlock()
	gateway.setDevices(Info{UDID: "udid-1", VendorID: "05ac", ProductID: "1261"})
	monitor.poll()

	if len(listener.attached) != 1 {
		t.Fatalf("expected attach after bridge recovery, got %d", len(listener.attached))
	}
}
