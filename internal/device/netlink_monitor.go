package device

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"redshift/internal/config"
	"redshift/internal/logging"
)

// NetlinkMonitor listens for udev USB events and nudges the poll monitor so
// attach and detach are noticed immediately instead of on the next poll tick.
type NetlinkMonitor struct {
	cfg      *config.Config
	logger   *slog.Logger
	vendorID string
	nudge    func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewNetlinkMonitor creates a netlink monitor that triggers the given nudge
// on USB add or remove events for the configured vendor.
func NewNetlinkMonitor(cfg *config.Config, logger *slog.Logger, nudge func()) *NetlinkMonitor {
	if cfg == nil || cfg.Device.NetlinkDisabled {
		return nil
	}
	return &NetlinkMonitor{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "netlink-monitor"),
		vendorID: strings.ToLower(strings.TrimSpace(cfg.Device.VendorID)),
		nudge:    nudge,
	}
}

// Start begins listening for udev netlink events. Connection failure is not
// fatal; polling alone still detects devices.
func (m *NetlinkMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; relying on polling alone",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "attach detection delayed up to one poll interval"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("netlink monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"))
	return nil
}

// Stop shuts down the netlink monitor.
func (m *NetlinkMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("netlink monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"))
}

// Running reports whether the netlink monitor is active.
func (m *NetlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *NetlinkMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"))
		}
	}
}

// buildMatcher matches USB device add and remove events.
func (m *NetlinkMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove|bind|unbind"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "usb",
		},
	})
	return rules
}

func (m *NetlinkMonitor) handleEvent(uevent netlink.UEvent) {
	if m.vendorID != "" {
		// ID_VENDOR_ID is absent on some kernels; nudge anyway when missing
		// since a spurious poll is cheap.
		if vendor := strings.ToLower(uevent.Env["ID_VENDOR_ID"]); vendor != "" && vendor != m.vendorID {
			return
		}
	}
	m.logger.Debug("usb event",
		logging.String("action", string(uevent.Action)),
		logging.String("kobj", uevent.KObj))
	if m.nudge != nil {
		m.nudge()
	}
}
