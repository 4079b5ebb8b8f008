package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"redshift/internal/device"
	"redshift/internal/library"
	"redshift/internal/logging"
	"redshift/internal/store"
	"redshift/internal/syncer"
)

// Controller is the daemon surface the IPC service needs. The daemon
// implements it; tests substitute fakes.
type Controller interface {
	Status(ctx context.Context) (syncer.Status, error)
	Scan(ctx context.Context) (library.Summary, error)
	StartSync(ctx context.Context, opts syncer.SessionOptions) (syncer.Summary, error)
	PreIndex(ctx context.Context) (syncer.PreIndexResult, error)
	RefreshLedger(ctx context.Context) (syncer.RefreshResult, error)
	Devices() []device.Info
	Sessions(ctx context.Context, limit int) ([]store.SessionRecord, error)
	DatabaseHealth(ctx context.Context) (store.DatabaseHealth, error)
	TestNotification(ctx context.Context) (bool, string, error)
	LockPath() string
	DBPath() string
	RequestShutdown()
}

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, controller Controller, logger *slog.Logger) (*Server, error) {
	if controller == nil {
		return nil, errors.New("ipc server requires a controller")
	}
	if logger == nil {
		logger = slog.New(logging.NoopHandler{})
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{controller: controller, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("RedShift", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually before the next start"))
	}
}

type service struct {
	controller Controller
	logger     *slog.Logger
	ctx        context.Context
}

func sessionStatus(record store.SessionRecord) SessionStatus {
	status := SessionStatus{
		ID:               record.ID,
		StartedAt:        record.StartedAt.Format(time.RFC3339),
		FilesQueued:      record.FilesQueued,
		FilesTransferred: record.FilesTransferred,
		FilesFailed:      record.FilesFailed,
		TotalBytes:       record.TotalBytes,
		Method:           record.Method,
		DeviceID:         record.DeviceID,
	}
	if !record.FinishedAt.IsZero() {
		status.FinishedAt = record.FinishedAt.Format(time.RFC3339)
	}
	return status
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.controller.Status(s.ctx)
	if err != nil {
		return err
	}
	resp.Running = true
	resp.SyncActive = status.SyncActive
	resp.CachedFiles = status.Stats.CachedFiles
	resp.Transferred = status.Stats.Transferred
	resp.Pending = status.Stats.Pending
	resp.HealthScore = status.HealthScore
	resp.DBPath = s.controller.DBPath()
	resp.LockPath = s.controller.LockPath()
	resp.PID = os.Getpid()
	if status.Device != nil {
		resp.Device = &DeviceStatus{
			UDID:      status.Device.UDID,
			Name:      status.Device.Name,
			ProductID: status.Device.ProductID,
		}
	}
	if status.LastSession != nil {
		last := sessionStatus(*status.LastSession)
		resp.LastSession = &last
	}
	return nil
}

func (s *service) Scan(_ ScanRequest, resp *ScanResponse) error {
	s.logger.Debug("library scan requested")
	summary, err := s.controller.Scan(s.ctx)
	if err != nil {
		return err
	}
	resp.Scanned = summary.Scanned
	resp.New = summary.New
	resp.Modified = summary.Modified
	resp.Unchanged = summary.Unchanged
	resp.Deleted = summary.Deleted
	resp.Duration = summary.Duration.Round(time.Millisecond).String()
	return nil
}

func (s *service) SyncStart(req SyncStartRequest, resp *SyncStartResponse) error {
	s.logger.Debug("sync session requested", logging.String(logging.FieldMethod, req.Method))
	summary, err := s.controller.StartSync(s.ctx, syncer.SessionOptions{
		Method:          req.Method,
		CleanupOrphaned: req.CleanupOrphaned,
		SkipScan:        req.SkipScan,
	})
	if err != nil {
		return err
	}
	resp.SessionID = summary.SessionID
	resp.Queued = summary.Queued
	resp.Transferred = summary.Transferred
	resp.Failed = summary.Failed
	resp.Orphans = summary.Orphans
	resp.Bytes = summary.Bytes
	resp.Duration = summary.Duration.Round(time.Millisecond).String()
	resp.Method = summary.Method
	return nil
}

func (s *service) PreIndex(_ PreIndexRequest, resp *PreIndexResponse) error {
	s.logger.Debug("preindex requested")
	result, err := s.controller.PreIndex(s.ctx)
	if err != nil {
		return err
	}
	resp.Strategy = result.Strategy
	resp.Indexed = result.Indexed
	resp.Seeded = result.Seeded
	return nil
}

func (s *service) RefreshLedger(_ RefreshLedgerRequest, resp *RefreshLedgerResponse) error {
	s.logger.Debug("ledger refresh requested")
	result, err := s.controller.RefreshLedger(s.ctx)
	if err != nil {
		return err
	}
	resp.Checked = result.Checked
	resp.Dropped = result.Dropped
	return nil
}

func (s *service) Devices(_ DevicesRequest, resp *DevicesResponse) error {
	for _, info := range s.controller.Devices() {
		resp.Devices = append(resp.Devices, DeviceStatus{
			UDID:      info.UDID,
			Name:      info.Name,
			ProductID: info.ProductID,
		})
	}
	return nil
}

func (s *service) Sessions(req SessionsRequest, resp *SessionsResponse) error {
	sessions, err := s.controller.Sessions(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	for _, record := range sessions {
		resp.Sessions = append(resp.Sessions, sessionStatus(record))
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	s.controller.RequestShutdown()
	resp.Stopped = true
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.controller.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.TablesPresent = append(resp.TablesPresent, health.TablesPresent...)
	resp.MissingTables = append(resp.MissingTables, health.MissingTables...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.Error = health.Error
	return err
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.controller.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
