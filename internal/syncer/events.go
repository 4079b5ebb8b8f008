package syncer

import (
	"log/slog"
	"sync"

	"redshift/internal/logging"
)

// EventSink receives sync lifecycle events. Implementations must be safe for
// concurrent use; the engine may emit from multiple goroutines.
type EventSink interface {
	ScanProgress(processed, total int)
	SessionStarted(info SessionInfo)
	TransferProgress(sessionID string, done, total int)
	FileTransferred(sessionID string, item PlanItem)
	TransferError(sessionID, path string, err error)
	OrphanCleaned(sessionID, path string)
	SessionCompleted(sessionID string, summary Summary)
	SessionFailed(sessionID string, err error)
}

// SessionInfo describes a session at start time.
type SessionInfo struct {
	ID         string `json:"id"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	Method     string `json:"method"`
	Queued     int    `json:"queued"`
	Orphans    int    `json:"orphans"`
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) ScanProgress(int, int)                 {}
func (NoopSink) SessionStarted(SessionInfo)            {}
func (NoopSink) TransferProgress(string, int, int)     {}
func (NoopSink) FileTransferred(string, PlanItem)      {}
func (NoopSink) TransferError(string, string, error)   {}
func (NoopSink) OrphanCleaned(string, string)          {}
func (NoopSink) SessionCompleted(string, Summary)      {}
func (NoopSink) SessionFailed(string, error)           {}

// FanoutSink forwards every event to each registered sink in order.
type FanoutSink struct {
	mu    sync.RWMutex
	sinks []EventSink
}

// NewFanoutSink creates a fanout over the given sinks.
func NewFanoutSink(sinks ...EventSink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

// Add registers another sink.
func (f *FanoutSink) Add(sink EventSink) {
	if sink == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink)
}

func (f *FanoutSink) each(fn func(EventSink)) {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()
	for _, sink := range sinks {
		fn(sink)
	}
}

func (f *FanoutSink) ScanProgress(processed, total int) {
	f.each(func(s EventSink) { s.ScanProgress(processed, total) })
}

func (f *FanoutSink) SessionStarted(info SessionInfo) {
	f.each(func(s EventSink) { s.SessionStarted(info) })
}

func (f *FanoutSink) TransferProgress(sessionID string, done, total int) {
	f.each(func(s EventSink) { s.TransferProgress(sessionID, done, total) })
}

func (f *FanoutSink) FileTransferred(sessionID string, item PlanItem) {
	f.each(func(s EventSink) { s.FileTransferred(sessionID, item) })
}

func (f *FanoutSink) TransferError(sessionID, path string, err error) {
	f.each(func(s EventSink) { s.TransferError(sessionID, path, err) })
}

func (f *FanoutSink) OrphanCleaned(sessionID, path string) {
	f.each(func(s EventSink) { s.OrphanCleaned(sessionID, path) })
}

func (f *FanoutSink) SessionCompleted(sessionID string, summary Summary) {
	f.each(func(s EventSink) { s.SessionCompleted(sessionID, summary) })
}

func (f *FanoutSink) SessionFailed(sessionID string, err error) {
	f.each(func(s EventSink) { s.SessionFailed(sessionID, err) })
}

// logSink writes events to structured logs; the daemon registers it so
// every session leaves a trace even with no other sink attached.
type logSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs each event.
func NewLogSink(logger *slog.Logger) EventSink {
	return &logSink{logger: logging.NewComponentLogger(logger, "sync-events")}
}

func (s *logSink) ScanProgress(processed, total int) {
	s.logger.Debug("scan progress",
		logging.Int("processed", processed),
		logging.Int("total", total))
}

func (s *logSink) SessionStarted(info SessionInfo) {
	s.logger.Info("sync session started",
		logging.String(logging.FieldEventType, "session_started"),
		logging.String(logging.FieldSessionID, info.ID),
		logging.String(logging.FieldDeviceID, info.DeviceID),
		logging.String(logging.FieldMethod, info.Method),
		logging.Int("queued", info.Queued))
}

func (s *logSink) TransferProgress(sessionID string, done, total int) {
	s.logger.Debug("transfer progress",
		logging.String(logging.FieldSessionID, sessionID),
		logging.Int("done", done),
		logging.Int("total", total))
}

func (s *logSink) FileTransferred(sessionID string, item PlanItem) {
	s.logger.Debug("file transferred",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldPath, item.Path),
		logging.Int64("size", item.Size))
}

func (s *logSink) TransferError(sessionID, path string, err error) {
	s.logger.Warn("file transfer failed",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldPath, path),
		logging.Error(err))
}

func (s *logSink) OrphanCleaned(sessionID, path string) {
	s.logger.Info("orphan removed from device",
		logging.String(logging.FieldEventType, "orphan_cleaned"),
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldPath, path))
}

func (s *logSink) SessionCompleted(sessionID string, summary Summary) {
	s.logger.Info("sync session completed",
		logging.String(logging.FieldEventType, "session_completed"),
		logging.String(logging.FieldSessionID, sessionID),
		logging.Int("transferred", summary.Transferred),
		logging.Int("failed", summary.Failed),
		logging.Int64("bytes", summary.Bytes))
}

func (s *logSink) SessionFailed(sessionID string, err error) {
	s.logger.Error("sync session failed",
		logging.String(logging.FieldEventType, "session_failed"),
		logging.String(logging.FieldSessionID, sessionID),
		logging.Error(err))
}
