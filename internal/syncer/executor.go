package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"redshift/internal/config"
	"redshift/internal/device"
	"redshift/internal/logging"
	"redshift/internal/store"
)

// Summary reports what one sync session actually did.
type Summary struct {
	SessionID   string        `json:"session_id"`
	Queued      int           `json:"queued"`
	Transferred int           `json:"transferred"`
	Failed      int           `json:"failed"`
	Orphans     int           `json:"orphans_cleaned"`
	Bytes       int64         `json:"bytes"`
	Duration    time.Duration `json:"duration"`
	Method      string        `json:"method"`
}

// Executor runs a transfer plan against one device. A session drains the
// entire plan; MaxBatchFiles bounds the ledger commit window, not how many
// files one session may move. Commits happen per batch, so a connection
// loss discards at most one batch of unverified records and the ledger
// never records files that may not have landed.
type Executor struct {
	cfg      *config.Config
	store    *store.Store
	strategy TransferStrategy
	events   EventSink
	logger   *slog.Logger
}

// NewExecutor creates an executor bound to one strategy.
func NewExecutor(cfg *config.Config, st *store.Store, strategy TransferStrategy, events EventSink, logger *slog.Logger) *Executor {
	if events == nil {
		events = NoopSink{}
	}
	if logger == nil {
		logger = slog.New(logging.NoopHandler{})
	}
	return &Executor{
		cfg:      cfg,
		store:    st,
		strategy: strategy,
		events:   events,
		logger:   logging.NewComponentLogger(logger, "executor"),
	}
}

// Run executes the plan. Individual file failures are counted and skipped;
// connection loss or context cancellation aborts the session after
// committing only the batches verified so far.
func (e *Executor) Run(ctx context.Context, sessionID string, plan *Plan, cleanupOrphans bool) (Summary, error) {
	start := time.Now()
	summary := Summary{
		SessionID: sessionID,
		Queued:    len(plan.Transfers),
		Method:    e.strategy.Name(),
	}

	if err := e.strategy.Preflight(ctx, plan); err != nil {
		return summary, fmt.Errorf("preflight: %w", err)
	}

	batchSize := e.cfg.Sync.MaxBatchFiles
	if batchSize < 1 {
		batchSize = 1
	}

	var batch []store.TransferRecord
	commit := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.store.InsertTransfers(ctx, batch); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	done := 0
	for _, item := range plan.Transfers {
		if err := ctx.Err(); err != nil {
			// The files in the open batch were verified before
			// cancellation; record them.
			if commitErr := commit(); commitErr != nil {
				return summary, commitErr
			}
			summary.Duration = time.Since(start)
			return summary, err
		}

		status, err := e.strategy.Transfer(ctx, item)
		done++
		if err != nil {
			if errors.Is(err, device.ErrConnectionLost) {
				// Anything transferred since the last commit is
				// unverified now; drop it rather than record files the
				// device may not have.
				discarded := len(batch)
				batch = nil
				summary.Duration = time.Since(start)
				e.logger.Error("device connection lost mid-session",
					logging.String(logging.FieldSessionID, sessionID),
					logging.String(logging.FieldPath, item.Path),
					logging.Int("discarded_unverified", discarded),
					logging.String(logging.FieldEventType, "connection_lost"),
					logging.String(logging.FieldImpact, "session aborted; unverified transfers will re-run next sync"))
				return summary, err
			}
			summary.Failed++
			e.events.TransferError(sessionID, item.Path, err)
			continue
		}

		summary.Transferred++
		summary.Bytes += item.Size
		batch = append(batch, store.TransferRecord{
			Path:     item.Path,
			Hash:     item.Hash,
			Size:     item.Size,
			MTime:    item.MTime,
			Method:   e.strategy.Name(),
			DeviceID: plan.DeviceID,
			Status:   status,
		})
		e.events.FileTransferred(sessionID, item)
		e.events.TransferProgress(sessionID, done, len(plan.Transfers))

		if len(batch) >= batchSize {
			if err := commit(); err != nil {
				return summary, err
			}
		}
	}
	if err := commit(); err != nil {
		return summary, err
	}

	if cleanupOrphans && len(plan.Orphans) > 0 {
		cleaned, err := e.cleanOrphans(ctx, sessionID, plan)
		summary.Orphans = cleaned
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// cleanOrphans removes ledger entries whose files left the library, deleting
// them from the device first. Connection loss aborts; other failures leave
// the ledger row in place for the next session.
func (e *Executor) cleanOrphans(ctx context.Context, sessionID string, plan *Plan) (int, error) {
	var removed []string
	for _, orphan := range plan.Orphans {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := e.strategy.RemoveOrphan(ctx, orphan); err != nil {
			if errors.Is(err, device.ErrConnectionLost) {
				if _, delErr := e.store.DeleteLedgerPaths(ctx, plan.DeviceID, removed); delErr != nil {
					return len(removed), delErr
				}
				return len(removed), err
			}
			e.logger.Warn("orphan removal failed",
				logging.String(logging.FieldSessionID, sessionID),
				logging.String(logging.FieldPath, orphan),
				logging.Error(err))
			continue
		}
		removed = append(removed, orphan)
		e.events.OrphanCleaned(sessionID, orphan)
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if _, err := e.store.DeleteLedgerPaths(ctx, plan.DeviceID, removed); err != nil {
		return len(removed), err
	}
	return len(removed), nil
}
