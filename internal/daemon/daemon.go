package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"redshift/internal/config"
	"redshift/internal/device"
	"redshift/internal/library"
	"redshift/internal/librarywatch"
	"redshift/internal/logging"
	"redshift/internal/notifications"
	"redshift/internal/store"
	"redshift/internal/syncer"
)

// Daemon composes the background services and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	gateway device.Gateway
	monitor *device.Monitor
	netlink *device.NetlinkMonitor
	watcher *librarywatch.Watcher
	engine  *syncer.Engine
	notify  notifications.Service

	lockPath string
	lock     *flock.Flock

	shutdown     chan struct{}
	shutdownOnce sync.Once

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies. The store stays
// open for the daemon's lifetime; Close releases it.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = slog.New(logging.NoopHandler{})
	}

	gateway := device.NewGateway(cfg)
	notify := notifications.NewService(cfg)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		gateway:  gateway,
		notify:   notify,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		shutdown: make(chan struct{}),
	}

	listener := &deviceListener{
		logger: logging.NewComponentLogger(logger, "device-events"),
		notify: notify,
	}
	d.monitor = device.NewMonitor(cfg, gateway, logger, listener)
	d.netlink = device.NewNetlinkMonitor(cfg, logger, d.monitor.Nudge)

	events := syncer.NewFanoutSink(
		syncer.NewLogSink(logger),
		newNotifySink(cfg, notify, logger),
	)
	d.engine = syncer.NewEngine(cfg, st, d.monitor, gateway, events, logger)

	d.watcher = librarywatch.New(cfg, logger, d.onLibraryChange)
	return d, nil
}

// Start acquires the daemon lock and launches the monitors and watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another redshift daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.monitor.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start device monitor: %w", err)
	}
	if d.netlink != nil {
		// Netlink is a nudge accelerator only; failure falls back to polling.
		if err := d.netlink.Start(d.ctx); err != nil {
			d.logger.Warn("netlink monitor unavailable, relying on polling",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_unavailable"))
		}
	}
	if d.cfg.Library.Watch {
		if err := d.watcher.Start(d.ctx); err != nil {
			d.logger.Warn("library watcher unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run scans manually or raise the inotify watch limit"))
		}
	}

	d.running.Store(true)
	d.logger.Info("redshift daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()))

	if d.cfg.Library.ScanOnStart {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if _, err := d.engine.Scan(d.ctx); err != nil && d.ctx.Err() == nil {
				d.logger.Warn("startup scan failed", logging.Error(err))
			}
		}()
	}
	return nil
}

// Stop halts background services and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.watcher.Stop()
	if d.netlink != nil {
		d.netlink.Stop()
	}
	d.monitor.Stop()
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("redshift daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// ShutdownRequested is closed when an IPC stop request arrives.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdown
}

// onLibraryChange runs a debounced incremental scan after filesystem
// activity settles.
func (d *Daemon) onLibraryChange() {
	ctx := d.ctx
	if ctx == nil || ctx.Err() != nil {
		return
	}
	summary, err := d.engine.Scan(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Warn("watch-triggered scan failed", logging.Error(err))
		}
		return
	}
	if summary.Changed() {
		d.logger.Info("library changed on disk",
			logging.String(logging.FieldEventType, "watch_scan_completed"),
			logging.Int("new", summary.New),
			logging.Int("modified", summary.Modified),
			logging.Int("deleted", summary.Deleted))
	}
}

// Status reports combined daemon and sync state.
func (d *Daemon) Status(ctx context.Context) (syncer.Status, error) {
	return d.engine.Status(ctx)
}

// Scan runs one incremental library scan.
func (d *Daemon) Scan(ctx context.Context) (library.Summary, error) {
	return d.engine.Scan(ctx)
}

// StartSync runs a sync session with the given options.
func (d *Daemon) StartSync(ctx context.Context, opts syncer.SessionOptions) (syncer.Summary, error) {
	return d.engine.StartSession(ctx, opts)
}

// PreIndex seeds the transfer ledger from the device's current contents.
func (d *Daemon) PreIndex(ctx context.Context) (syncer.PreIndexResult, error) {
	return d.engine.PreIndex(ctx)
}

// RefreshLedger prunes ledger rows for deleted library files.
func (d *Daemon) RefreshLedger(ctx context.Context) (syncer.RefreshResult, error) {
	return d.engine.RefreshLedger(ctx)
}

// Devices lists currently tracked devices.
func (d *Daemon) Devices() []device.Info {
	return d.monitor.Devices()
}

// Sessions returns recent session history, newest first.
func (d *Daemon) Sessions(ctx context.Context, limit int) ([]store.SessionRecord, error) {
	return d.store.Sessions(ctx, limit)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (store.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notify.TestNotification(ctx); err != nil {
		return false, fmt.Sprintf("notification failed: %v", err), err
	}
	return true, "test notification sent", nil
}

// LockPath returns the daemon lock file path.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// DBPath returns the cache database path.
func (d *Daemon) DBPath() string {
	return d.store.Path()
}

// RequestShutdown signals the daemon process to exit.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}
