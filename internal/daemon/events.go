package daemon

import (
	"context"
	"log/slog"
	"sync"

	"redshift/internal/config"
	"redshift/internal/device"
	"redshift/internal/logging"
	"redshift/internal/notifications"
	"redshift/internal/syncer"
)

// deviceListener forwards monitor callbacks to push notifications.
type deviceListener struct {
	logger *slog.Logger
	notify notifications.Service
}

func (l *deviceListener) DeviceAttached(ctx context.Context, info device.Info) {
	l.logger.Info("device attached",
		logging.String(logging.FieldEventType, "device_attached"),
		logging.String(logging.FieldDeviceID, info.UDID),
		logging.String("name", info.Name))
	if err := l.notify.NotifyDeviceAttached(ctx, info.Name); err != nil {
		l.logger.Warn("attach notification failed", logging.Error(err))
	}
}

func (l *deviceListener) DeviceDetached(ctx context.Context, info device.Info) {
	l.logger.Info("device detached",
		logging.String(logging.FieldEventType, "device_detached"),
		logging.String(logging.FieldDeviceID, info.UDID),
		logging.String("name", info.Name))
	if err := l.notify.NotifyDeviceDetached(ctx, info.Name); err != nil {
		l.logger.Warn("detach notification failed", logging.Error(err))
	}
}

func (l *deviceListener) DeviceUnrecognized(ctx context.Context, info device.Info) {
	l.logger.Warn("unrecognized product attached",
		logging.String(logging.FieldEventType, "device_unrecognized"),
		logging.String(logging.FieldDeviceID, info.UDID),
		logging.String("product_id", info.ProductID),
		logging.String(logging.FieldErrorHint, "pin device_id in config if this device should sync"))
	if err := l.notify.NotifyDeviceUnrecognized(ctx, info.ProductID); err != nil {
		l.logger.Warn("unrecognized-device notification failed", logging.Error(err))
	}
}

// notifySink translates sync lifecycle events into push notifications.
// It remembers session start info so completion and failure messages can
// name the device and method.
type notifySink struct {
	cfg    *config.Config
	notify notifications.Service
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]syncer.SessionInfo
}

func newNotifySink(cfg *config.Config, notify notifications.Service, logger *slog.Logger) syncer.EventSink {
	return &notifySink{
		cfg:      cfg,
		notify:   notify,
		logger:   logging.NewComponentLogger(logger, "notify-sink"),
		sessions: make(map[string]syncer.SessionInfo),
	}
}

func (s *notifySink) ScanProgress(int, int)             {}
func (s *notifySink) TransferProgress(string, int, int) {}
func (s *notifySink) FileTransferred(string, syncer.PlanItem) {
}
func (s *notifySink) TransferError(string, string, error) {}
func (s *notifySink) OrphanCleaned(string, string)        {}

func (s *notifySink) SessionStarted(info syncer.SessionInfo) {
	s.mu.Lock()
	s.sessions[info.ID] = info
	s.mu.Unlock()

	if info.Queued == 0 {
		return
	}
	if err := s.notify.NotifySyncStarted(context.Background(), info.DeviceName, info.Queued); err != nil {
		s.logger.Warn("sync-start notification failed", logging.Error(err))
	}
}

func (s *notifySink) SessionCompleted(sessionID string, summary syncer.Summary) {
	info := s.take(sessionID)

	var err error
	if summary.Method == config.TransferMethodManual && summary.Transferred > 0 {
		err = s.notify.NotifyManualStaged(context.Background(), summary.Transferred, s.cfg.Paths.OutboxDir)
	} else if summary.Transferred > 0 || summary.Failed > 0 {
		err = s.notify.NotifySyncCompleted(context.Background(), info.DeviceName, summary.Transferred, summary.Failed, summary.Duration)
	}
	if err != nil {
		s.logger.Warn("sync-complete notification failed", logging.Error(err))
	}
}

func (s *notifySink) SessionFailed(sessionID string, err error) {
	info := s.take(sessionID)
	if notifyErr := s.notify.NotifySyncFailed(context.Background(), info.DeviceName, err); notifyErr != nil {
		s.logger.Warn("sync-failure notification failed", logging.Error(notifyErr))
	}
}

func (s *notifySink) take(sessionID string) syncer.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return info
}
