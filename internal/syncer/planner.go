package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"

	"redshift/internal/config"
	"redshift/internal/fingerprint"
	"redshift/internal/logging"
	"redshift/internal/store"
)

// PlanItem is one file the planner decided to transfer.
type PlanItem struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	MTime  int64  `json:"mtime"`
	Hash   string `json:"hash"`
	Reason string `json:"reason"`
}

// Plan reasons.
const (
	ReasonNew      = "new"
	ReasonModified = "modified"
)

// Plan is the outcome of comparing the library snapshot against the transfer
// ledger for one device.
type Plan struct {
	DeviceID     string     `json:"device_id"`
	Transfers    []PlanItem `json:"transfers"`
	Orphans      []string   `json:"orphans"`
	Duplicates   int        `json:"duplicates"`
	Unchanged    int        `json:"unchanged"`
	Pending      int        `json:"pending"`
	StalePending int        `json:"stale_pending"`
	LibraryFiles int        `json:"library_files"`
	Transferred  int        `json:"transferred"`
	TotalBytes   int64      `json:"total_bytes"`
	HealthScore  int        `json:"health_score"`
}

// Planner decides what a sync session must do. Size or mtime drift only
// nominates a file; the content hash has the final word, so a re-tagged
// timestamp with identical bytes never re-transfers.
type Planner struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	hash   func(path string) (fingerprint.Fingerprint, error)
}

// NewPlanner creates a planner over the given store.
func NewPlanner(cfg *config.Config, st *store.Store, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(logging.NoopHandler{})
	}
	return &Planner{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "planner"),
		hash:   fingerprint.Compute,
	}
}

// BuildPlan computes the transfer plan for one device from the persisted
// snapshot and ledger.
func (p *Planner) BuildPlan(ctx context.Context, deviceID string) (*Plan, error) {
	snapshot, err := p.store.SnapshotEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	ledger, err := p.store.LedgerRecords(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return p.build(ctx, deviceID, snapshot, ledger)
}

func (p *Planner) build(ctx context.Context, deviceID string, snapshot map[string]store.SnapshotEntry, ledger map[string]store.TransferRecord) (*Plan, error) {
	plan := &Plan{DeviceID: deviceID, LibraryFiles: len(snapshot)}

	transferredHashes := make(map[string]struct{}, len(ledger))
	for _, record := range ledger {
		if record.Status == store.StatusCompleted {
			plan.Transferred++
			if record.Hash != "" {
				transferredHashes[record.Hash] = struct{}{}
			}
		}
	}

	paths := make([]string, 0, len(snapshot))
	for path := range snapshot {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := snapshot[path]
		record, onDevice := ledger[path]

		if onDevice && record.Status == store.StatusPending {
			// Already staged for a manual transfer; re-queueing would
			// duplicate the outbox copy.
			plan.Pending++
			continue
		}
		if onDevice && record.Size == entry.Size && record.MTime == entry.MTime {
			plan.Unchanged++
			continue
		}

		fp, err := p.hash(p.absolutePath(path))
		if err != nil {
			if !errors.Is(err, fingerprint.ErrHashUnavailable) {
				return nil, fmt.Errorf("fingerprint %q: %w", path, err)
			}
			// Hashing failed; queue the file anyway with an empty hash.
			// Silently dropping a file is worse than a harmless
			// duplicate transfer.
			p.logger.Warn("hashing failed; queueing file unverified",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
			fp = fingerprint.Fingerprint{}
		}

		if onDevice && fp.Hash != "" && record.Hash == fp.Hash {
			// Metadata drift only; content already on the device.
			plan.Unchanged++
			continue
		}
		if !onDevice && fp.Hash != "" {
			if _, dup := transferredHashes[fp.Hash]; dup {
				// Same bytes already transferred under another path.
				plan.Duplicates++
				continue
			}
		}

		reason := ReasonNew
		if onDevice {
			reason = ReasonModified
		}
		plan.Transfers = append(plan.Transfers, PlanItem{
			Path:   path,
			Size:   entry.Size,
			MTime:  entry.MTime,
			Hash:   fp.Hash,
			Reason: reason,
		})
		plan.TotalBytes += entry.Size
	}

	for path, record := range ledger {
		if _, ok := snapshot[path]; ok {
			continue
		}
		switch record.Status {
		case store.StatusCompleted:
			plan.Orphans = append(plan.Orphans, path)
		case store.StatusPending:
			// Staged for manual transfer but the local file is gone;
			// a ledger refresh clears these.
			plan.StalePending++
		}
	}
	sort.Strings(plan.Orphans)

	if plan.StalePending > 0 {
		p.logger.Warn("pending transfers reference deleted library files",
			logging.Int("stale_pending", plan.StalePending),
			logging.String(logging.FieldErrorHint, "run a ledger refresh to clear them"))
	}

	plan.HealthScore = healthScore(plan.Transferred, plan.LibraryFiles, len(plan.Orphans))
	return plan, nil
}

func (p *Planner) absolutePath(path string) string {
	return filepath.Join(p.cfg.Paths.LibraryDir, filepath.FromSlash(path))
}

// healthScore grades how closely the device mirrors the library on a 0-100
// scale. Coverage dominates; orphans can deduct at most half the score.
func healthScore(transferred, libraryFiles, orphans int) int {
	if libraryFiles == 0 {
		if orphans > 0 {
			return 0
		}
		return 100
	}
	coverage := math.Min(float64(transferred)/float64(libraryFiles), 1)
	divisor := transferred
	if divisor < 1 {
		divisor = 1
	}
	penalty := math.Min(float64(orphans)/float64(divisor), 0.5)
	score := int(math.Round(100 * (coverage - penalty)))
	if score < 0 {
		return 0
	}
	return score
}
