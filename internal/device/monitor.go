package device

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"redshift/internal/config"
	"redshift/internal/logging"
)

// Listener receives device lifecycle callbacks. Callbacks are serialized and
// idempotent: each attach is paired with at most one detach.
type Listener interface {
	DeviceAttached(ctx context.Context, info Info)
	DeviceDetached(ctx context.Context, info Info)
	DeviceUnrecognized(ctx context.Context, info Info)
}

// Monitor watches for device attach and detach through periodic bridge
// polling. Polling is adaptive: while no device is attached the monitor
// polls at the fast interval so a plug-in is noticed quickly; once a device
// is tracked only a disconnect is left to detect and the next scheduled
// poll drops to the slow interval.
type Monitor struct {
	cfg      *config.Config
	gateway  Gateway
	logger   *slog.Logger
	listener Listener

	fastInterval time.Duration
	slowInterval time.Duration

	mu             sync.Mutex
	running        bool
	tracked        map[string]Info
	notified       map[string]struct{}
	bridgeDegraded bool

	nudges chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a device monitor. A nil listener is allowed; the
// monitor still tracks presence for Devices and Current.
func NewMonitor(cfg *config.Config, gateway Gateway, logger *slog.Logger, listener Listener) *Monitor {
	if logger == nil {
		logger = slog.New(logging.NoopHandler{})
	}
	fast := time.Duration(cfg.Device.PollFastInterval) * time.Second
	if fast <= 0 {
		fast = 3 * time.Second
	}
	slow := time.Duration(cfg.Device.PollSlowInterval) * time.Second
	if slow < fast {
		slow = fast
	}
	return &Monitor{
		cfg:          cfg,
		gateway:      gateway,
		logger:       logging.NewComponentLogger(logger, "device-monitor"),
		listener:     listener,
		fastInterval: fast,
		slowInterval: slow,
		tracked:      make(map[string]Info),
		notified:     make(map[string]struct{}),
		nudges:       make(chan struct{}, 1),
	}
}

// Start begins polling. It is an error to start a running monitor.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("device monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop halts polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Nudge requests an immediate poll. Safe to call from any goroutine;
// redundant nudges coalesce.
func (m *Monitor) Nudge() {
	select {
	case m.nudges <- struct{}{}:
	default:
	}
}

// Devices returns the currently tracked devices sorted by UDID.
func (m *Monitor) Devices() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	devices := make([]Info, 0, len(m.tracked))
	for _, info := range m.tracked {
		devices = append(devices, info)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].UDID < devices[j].UDID })
	return devices
}

// Current returns the device a sync session should target, or ErrNoDevice.
// When a device ID is pinned in configuration only that device qualifies.
func (m *Monitor) Current() (Info, error) {
	devices := m.Devices()
	pinned := strings.TrimSpace(m.cfg.Device.DeviceID)
	for _, info := range devices {
		if pinned == "" || strings.EqualFold(info.UDID, pinned) {
			return info, nil
		}
	}
	return Info{}, ErrNoDevice
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.poll()

	timer := time.NewTimer(m.interval())
	defer timer.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.nudges:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			m.poll()
			timer.Reset(m.interval())
		case <-timer.C:
			m.poll()
			timer.Reset(m.interval())
		}
	}
}

// interval picks the next polling period from device presence: fast while
// nothing is attached, slow once a device is tracked.
func (m *Monitor) interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tracked) == 0 {
		return m.fastInterval
	}
	return m.slowInterval
}

func (m *Monitor) poll() {
	ctx := m.ctx
	if ctx == nil {
		return
	}

	devices, err := m.gateway.ListDevices(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrBridgeUnavailable) {
			m.mu.Lock()
			degraded := m.bridgeDegraded
			m.bridgeDegraded = true
			m.mu.Unlock()
			if !degraded {
				m.logger.Warn("device bridge unavailable; detection disabled until it appears",
					logging.Error(err),
					logging.String(logging.FieldEventType, "bridge_unavailable"),
					logging.String(logging.FieldErrorHint, "install the bridge binary or set device.bridge_binary"),
					logging.String(logging.FieldImpact, "device detection unavailable"))
			}
			return
		}
		m.logger.Warn("device poll failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "device_poll_failed"))
		return
	}

	m.mu.Lock()
	if m.bridgeDegraded {
		m.bridgeDegraded = false
		m.logger.Info("device bridge recovered",
			logging.String(logging.FieldEventType, "bridge_recovered"))
	}
	m.mu.Unlock()

	current := make(map[string]Info, len(devices))
	for _, info := range devices {
		if !Recognized(info, m.cfg.Device.VendorID) {
			continue
		}
		if strings.TrimSpace(info.Name) == "" {
			if name, nameErr := m.gateway.DeviceName(ctx, info.UDID); nameErr == nil {
				info.Name = name
			}
		}
		info.Name = DisplayName(info, m.cfg.Device.VendorID)
		current[info.UDID] = info
	}

	var attached, detached []Info
	m.mu.Lock()
	for udid, info := range current {
		if _, ok := m.tracked[udid]; !ok {
			attached = append(attached, info)
		}
		m.tracked[udid] = info
	}
	for udid, info := range m.tracked {
		if _, ok := current[udid]; !ok {
			detached = append(detached, info)
			delete(m.tracked, udid)
		}
	}
	m.mu.Unlock()

	for _, info := range attached {
		m.logger.Info("device attached",
			logging.String(logging.FieldEventType, "device_attached"),
			logging.String(logging.FieldDeviceID, info.UDID),
			logging.String("name", info.Name))
		if m.listener != nil {
			m.listener.DeviceAttached(ctx, info)
		}
		m.maybeNoticeUnrecognized(ctx, info)
	}
	for _, info := range detached {
		m.logger.Info("device detached",
			logging.String(logging.FieldEventType, "device_detached"),
			logging.String(logging.FieldDeviceID, info.UDID),
			logging.String("name", info.Name))
		if m.listener != nil {
			m.listener.DeviceDetached(ctx, info)
		}
	}
}

// maybeNoticeUnrecognized raises a one-time notice for devices from the
// configured vendor whose product is not in the table.
func (m *Monitor) maybeNoticeUnrecognized(ctx context.Context, info Info) {
	if !m.cfg.Device.UnrecognizedNotice || info.ProductID == "" || KnownProduct(info) {
		return
	}
	m.mu.Lock()
	if _, seen := m.notified[info.UDID]; seen {
		m.mu.Unlock()
		return
	}
	m.notified[info.UDID] = struct{}{}
	m.mu.Unlock()

	m.logger.Info("unrecognized device product",
		logging.String(logging.FieldEventType, "device_unrecognized"),
		logging.String(logging.FieldDeviceID, info.UDID),
		logging.String("product_id", info.ProductID))
	if m.listener != nil {
		m.listener.DeviceUnrecognized(ctx, info)
	}
}
