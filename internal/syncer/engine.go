package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"redshift/internal/config"
	"redshift/internal/device"
	"redshift/internal/deviceindex"
	"redshift/internal/library"
	"redshift/internal/logging"
	"redshift/internal/store"
)

// ErrSyncInProgress means a sync session is already running; sessions are
// single-flight.
var ErrSyncInProgress = errors.New("sync session already in progress")

// preIndexMethod marks ledger rows seeded from a device index rather than an
// actual transfer.
const preIndexMethod = "preindex"

// DeviceProvider reports the device a session should target.
type DeviceProvider interface {
	Current() (device.Info, error)
}

// staticDeviceProvider pins a fixed device, used by one-shot CLI commands
// that query the bridge once instead of running a monitor.
type staticDeviceProvider struct {
	info Info
	err  error
}

type Info = device.Info

func (p staticDeviceProvider) Current() (device.Info, error) { return p.info, p.err }

// StaticDevice wraps a known device as a DeviceProvider.
func StaticDevice(info device.Info) DeviceProvider {
	return staticDeviceProvider{info: info}
}

// NoDevice is a DeviceProvider that always reports absence.
func NoDevice() DeviceProvider {
	return staticDeviceProvider{err: device.ErrNoDevice}
}

// SessionOptions tune one sync session.
type SessionOptions struct {
	// Method overrides the configured transfer method when non-empty.
	Method string
	// CleanupOrphaned removes device files whose library source vanished.
	CleanupOrphaned bool
	// SkipScan starts from the existing snapshot without rescanning.
	SkipScan bool
}

// Engine coordinates scans, planning, and transfer sessions.
type Engine struct {
	cfg     *config.Config
	store   *store.Store
	scanner *library.Scanner
	planner *Planner
	devices DeviceProvider
	gateway device.Gateway
	index   *deviceindex.Reader
	events  EventSink
	logger  *slog.Logger

	active chan struct{}
}

// NewEngine wires an engine from its collaborators. A nil events sink is
// replaced with a logging sink.
func NewEngine(cfg *config.Config, st *store.Store, devices DeviceProvider, gateway device.Gateway, events EventSink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(logging.NoopHandler{})
	}
	if events == nil {
		events = NewLogSink(logger)
	}
	if devices == nil {
		devices = NoDevice()
	}
	return &Engine{
		cfg:     cfg,
		store:   st,
		scanner: library.NewScanner(cfg, st, logger),
		planner: NewPlanner(cfg, st, logger),
		devices: devices,
		gateway: gateway,
		index:   deviceindex.NewReader(cfg, gateway, logger),
		events:  events,
		logger:  logging.NewComponentLogger(logger, "syncer"),
		active:  make(chan struct{}, 1),
	}
}

func (e *Engine) acquire() error {
	select {
	case e.active <- struct{}{}:
		return nil
	default:
		return ErrSyncInProgress
	}
}

func (e *Engine) release() {
	<-e.active
}

// SyncActive reports whether a session is currently running.
func (e *Engine) SyncActive() bool {
	return len(e.active) > 0
}

// Scan runs one incremental library scan.
func (e *Engine) Scan(ctx context.Context) (library.Summary, error) {
	return e.scanner.Scan(ctx, e.events.ScanProgress)
}

// Status summarizes current sync state.
type Status struct {
	Device      *device.Info        `json:"device,omitempty"`
	SyncActive  bool                `json:"sync_active"`
	Stats       store.Stats         `json:"stats"`
	HealthScore int                 `json:"health_score"`
	LastSession *store.SessionRecord `json:"last_session,omitempty"`
}

// Status reports device presence, store counts, and library health. Health
// is computed from the snapshot and ledger without touching file contents.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var status Status
	status.SyncActive = e.SyncActive()

	stats, err := e.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	status.Stats = stats

	info, err := e.devices.Current()
	switch {
	case err == nil:
		status.Device = &info
	case errors.Is(err, device.ErrNoDevice):
	default:
		return Status{}, err
	}

	deviceID := e.targetDeviceID(status.Device)
	score, err := e.healthSnapshot(ctx, deviceID)
	if err != nil {
		return Status{}, err
	}
	status.HealthScore = score

	sessions, err := e.store.Sessions(ctx, 1)
	if err != nil {
		return Status{}, err
	}
	if len(sessions) > 0 {
		status.LastSession = &sessions[0]
	}
	return status, nil
}

func (e *Engine) targetDeviceID(info *device.Info) string {
	if info != nil {
		return info.UDID
	}
	return e.cfg.Device.DeviceID
}

// healthSnapshot computes the health score from row counts alone.
func (e *Engine) healthSnapshot(ctx context.Context, deviceID string) (int, error) {
	snapshot, err := e.store.SnapshotEntries(ctx)
	if err != nil {
		return 0, err
	}
	ledger, err := e.store.LedgerRecords(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	transferred, orphans := 0, 0
	for path, record := range ledger {
		if record.Status != store.StatusCompleted {
			continue
		}
		if _, ok := snapshot[path]; ok {
			transferred++
		} else {
			orphans++
		}
	}
	return healthScore(transferred, len(snapshot), orphans), nil
}

// Plan scans (unless skipped) and builds the transfer plan without
// executing it.
func (e *Engine) Plan(ctx context.Context, skipScan bool) (*Plan, error) {
	if !skipScan {
		if _, err := e.Scan(ctx); err != nil {
			return nil, err
		}
	}
	info, err := e.devices.Current()
	deviceID := e.cfg.Device.DeviceID
	if err == nil {
		deviceID = info.UDID
	} else if !errors.Is(err, device.ErrNoDevice) {
		return nil, err
	}
	return e.planner.BuildPlan(ctx, deviceID)
}

// StartSession runs one full sync session: scan, plan, transfer, record.
func (e *Engine) StartSession(ctx context.Context, opts SessionOptions) (Summary, error) {
	if err := e.acquire(); err != nil {
		return Summary{}, err
	}
	defer e.release()

	sessionID := uuid.NewString()

	summary, err := e.runSession(ctx, sessionID, opts)
	if err != nil {
		e.events.SessionFailed(sessionID, err)
		return summary, err
	}
	e.events.SessionCompleted(sessionID, summary)
	return summary, nil
}

func (e *Engine) runSession(ctx context.Context, sessionID string, opts SessionOptions) (Summary, error) {
	started := time.Now().UTC()

	if !opts.SkipScan {
		if _, err := e.Scan(ctx); err != nil {
			return Summary{SessionID: sessionID}, fmt.Errorf("scan library: %w", err)
		}
	}

	method := opts.Method
	if method == "" {
		method = e.cfg.Sync.TransferMethod
	}

	var (
		info       device.Info
		deviceID   string
		deviceName string
	)
	current, err := e.devices.Current()
	switch {
	case err == nil:
		info = current
		deviceID = info.UDID
		deviceName = info.Name
	case errors.Is(err, device.ErrNoDevice):
		if method != config.TransferMethodManual {
			return Summary{SessionID: sessionID}, err
		}
		// Manual mode stages to the outbox and needs no live device.
		deviceID = e.cfg.Device.DeviceID
	default:
		return Summary{SessionID: sessionID}, err
	}

	plan, err := e.planner.BuildPlan(ctx, deviceID)
	if err != nil {
		return Summary{SessionID: sessionID}, fmt.Errorf("build plan: %w", err)
	}

	e.events.SessionStarted(SessionInfo{
		ID:         sessionID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Method:     method,
		Queued:     len(plan.Transfers),
		Orphans:    len(plan.Orphans),
	})

	sessionCfg := *e.cfg
	sessionCfg.Sync.TransferMethod = method
	strategy, err := StrategyFor(&sessionCfg, e.gateway, info.UDID)
	if err != nil {
		return Summary{SessionID: sessionID}, err
	}

	record := store.SessionRecord{
		ID:          sessionID,
		StartedAt:   started,
		FilesQueued: len(plan.Transfers),
		Method:      method,
		DeviceID:    deviceID,
	}
	if err := e.store.RecordSession(ctx, record); err != nil {
		return Summary{SessionID: sessionID}, err
	}

	executor := NewExecutor(&sessionCfg, e.store, strategy, e.events, e.logger)
	summary, runErr := executor.Run(ctx, sessionID, plan, opts.CleanupOrphaned)

	record.FinishedAt = time.Now().UTC()
	record.FilesTransferred = summary.Transferred
	record.FilesFailed = summary.Failed
	record.TotalBytes = summary.Bytes
	if err := e.store.RecordSession(ctx, record); err != nil {
		e.logger.Warn("failed to record session outcome",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
	}
	return summary, runErr
}

// PreIndexResult reports how ledger seeding went.
type PreIndexResult struct {
	Strategy string `json:"strategy"`
	Indexed  int    `json:"indexed"`
	Seeded   int    `json:"seeded"`
}

// PreIndex reads what is already on the device and seeds the ledger so those
// tracks are not transferred again. A library file counts as present only
// when a device track matches both its normalized name and its size; a name
// collision with different bytes must not suppress the transfer. Seeded rows
// carry no hash; a later size or mtime drift will re-verify them by content.
func (e *Engine) PreIndex(ctx context.Context) (PreIndexResult, error) {
	info, err := e.devices.Current()
	if err != nil {
		return PreIndexResult{}, err
	}

	index, err := e.index.Read(ctx, info)
	if err != nil {
		return PreIndexResult{}, err
	}
	result := PreIndexResult{Strategy: index.Source(), Indexed: index.Len()}

	snapshot, err := e.store.SnapshotEntries(ctx)
	if err != nil {
		return result, err
	}
	ledger, err := e.store.LedgerRecords(ctx, info.UDID)
	if err != nil {
		return result, err
	}

	var seeds []store.TransferRecord
	for path, entry := range snapshot {
		if _, ok := ledger[path]; ok {
			continue
		}
		matched := false
		for _, hit := range index.Lookup(deviceindex.NormalizeKey(path)) {
			if hit.Size == entry.Size {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		seeds = append(seeds, store.TransferRecord{
			Path:     path,
			Size:     entry.Size,
			MTime:    entry.MTime,
			Method:   preIndexMethod,
			DeviceID: info.UDID,
			Status:   store.StatusCompleted,
		})
	}
	if err := e.store.InsertTransfers(ctx, seeds); err != nil {
		return result, err
	}
	result.Seeded = len(seeds)

	e.logger.Info("ledger seeded from device index",
		logging.String(logging.FieldEventType, "preindex_completed"),
		logging.String(logging.FieldDeviceID, info.UDID),
		logging.String("strategy", result.Strategy),
		logging.Int("indexed", result.Indexed),
		logging.Int("seeded", result.Seeded))
	return result, nil
}

// RefreshResult reports a ledger refresh.
type RefreshResult struct {
	Checked int `json:"checked"`
	Dropped int `json:"dropped"`
}

// RefreshLedger drops ledger rows whose local library file no longer
// exists. A maintenance operation over the local filesystem only: no
// device is needed, and a row is never removed because the device lost the
// track. Orphan cleanup during a sync session handles the device side.
func (e *Engine) RefreshLedger(ctx context.Context) (RefreshResult, error) {
	deviceID := e.cfg.Device.DeviceID
	if info, err := e.devices.Current(); err == nil {
		deviceID = info.UDID
	}

	ledger, err := e.store.LedgerRecords(ctx, deviceID)
	if err != nil {
		return RefreshResult{}, err
	}

	var result RefreshResult
	var missing []string
	for path := range ledger {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++
		abs := filepath.Join(e.cfg.Paths.LibraryDir, filepath.FromSlash(path))
		if _, statErr := os.Stat(abs); errors.Is(statErr, fs.ErrNotExist) {
			missing = append(missing, path)
		}
	}
	dropped, err := e.store.DeleteLedgerPaths(ctx, deviceID, missing)
	if err != nil {
		return result, err
	}
	result.Dropped = int(dropped)

	e.logger.Info("ledger refreshed against library",
		logging.String(logging.FieldEventType, "ledger_refreshed"),
		logging.String(logging.FieldDeviceID, deviceID),
		logging.Int("checked", result.Checked),
		logging.Int("dropped", result.Dropped))
	return result, nil
}

// Pull copies one file off the device into a local path.
func (e *Engine) Pull(ctx context.Context, remotePath, localPath string) error {
	info, err := e.devices.Current()
	if err != nil {
		return err
	}
	if e.gateway == nil {
		return device.ErrBridgeUnavailable
	}
	return e.gateway.Pull(ctx, info.UDID, remotePath, localPath)
}

// ConfirmManual promotes pending manual-transfer rows to completed after the
// user finished moving the outbox to the device.
func (e *Engine) ConfirmManual(ctx context.Context, paths []string) (int64, error) {
	deviceID := e.cfg.Device.DeviceID
	if info, err := e.devices.Current(); err == nil {
		deviceID = info.UDID
	}
	return e.store.ConfirmPending(ctx, deviceID, paths)
}
