package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"redshift/internal/config"
	"redshift/internal/logging"
	"redshift/internal/metadata"
	"redshift/internal/store"
)

// ProgressFunc receives scan progress. processed never decreases and total
// never changes within one scan.
type ProgressFunc func(processed, total int)

// Summary reports the outcome of one library scan.
type Summary struct {
	Scanned   int           `json:"scanned"`
	New       int           `json:"new"`
	Modified  int           `json:"modified"`
	Unchanged int           `json:"unchanged"`
	Deleted   int           `json:"deleted"`
	Duration  time.Duration `json:"duration"`
}

// Changed returns whether the scan altered the persisted snapshot.
func (s Summary) Changed() bool {
	return s.New > 0 || s.Modified > 0 || s.Deleted > 0
}

// Scanner walks the library directory and reconciles what it finds against
// the persisted cache snapshot. Unchanged files (same size and mtime) are
// skipped without re-reading their contents.
type Scanner struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

// NewScanner creates a library scanner backed by the given store.
func NewScanner(cfg *config.Config, st *store.Store, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(logging.NoopHandler{})
	}
	return &Scanner{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "library"),
	}
}

type fileStat struct {
	path  string
	size  int64
	mtime int64
}

// Scan performs one incremental scan of the library directory and commits the
// result to the snapshot in a single transaction. A scan of an unchanged
// library is a no-op beyond the directory walk.
func (s *Scanner) Scan(ctx context.Context, progress ProgressFunc) (Summary, error) {
	start := time.Now()

	files, err := s.listLibraryFiles()
	if err != nil {
		return Summary{}, err
	}

	snapshot, err := s.store.SnapshotEntries(ctx)
	if err != nil {
		return Summary{}, err
	}

	var (
		changed   []fileStat
		summary   Summary
		deletions []string
	)
	summary.Scanned = len(files)

	seen := make(map[string]struct{}, len(files))
	for _, file := range files {
		seen[file.path] = struct{}{}
		previous, ok := snapshot[file.path]
		switch {
		case !ok:
			summary.New++
			changed = append(changed, file)
		case previous.Size != file.size || previous.MTime != file.mtime:
			summary.Modified++
			changed = append(changed, file)
		default:
			summary.Unchanged++
		}
	}
	for path := range snapshot {
		if _, ok := seen[path]; !ok {
			deletions = append(deletions, path)
		}
	}
	sort.Strings(deletions)
	summary.Deleted = len(deletions)

	upserts, err := s.extractMetadata(ctx, changed, progress)
	if err != nil {
		return Summary{}, err
	}

	if err := s.store.ApplyScan(ctx, upserts, deletions); err != nil {
		return Summary{}, fmt.Errorf("commit scan: %w", err)
	}

	summary.Duration = time.Since(start)
	s.logger.Info("library scan complete",
		logging.String(logging.FieldEventType, "scan_completed"),
		logging.Int("scanned", summary.Scanned),
		logging.Int("new", summary.New),
		logging.Int("modified", summary.Modified),
		logging.Int("deleted", summary.Deleted),
		logging.Duration("duration", summary.Duration))
	return summary, nil
}

// listLibraryFiles walks the library directory and returns every audio file
// as a path relative to the library root. Hidden files and directories are
// skipped.
func (s *Scanner) listLibraryFiles() ([]fileStat, error) {
	root := s.cfg.Paths.LibraryDir
	extensions := s.cfg.ExtensionSet()

	var files []fileStat
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return fmt.Errorf("library directory %q: %w", root, walkErr)
			}
			s.logger.Warn("skipping unreadable path",
				logging.String(logging.FieldPath, path),
				logging.Error(walkErr))
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if _, ok := extensions[strings.ToLower(filepath.Ext(name))]; !ok {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("skipping unstatable file",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, fileStat{
			path:  filepath.ToSlash(rel),
			size:  info.Size(),
			mtime: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("library directory %q does not exist", root)
		}
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// extractMetadata reads tags for changed files with a bounded worker pool.
// Extraction failures degrade to filename-derived metadata rather than
// failing the scan.
func (s *Scanner) extractMetadata(ctx context.Context, changed []fileStat, progress ProgressFunc) ([]store.SnapshotEntry, error) {
	if len(changed) == 0 {
		if progress != nil {
			progress(0, 0)
		}
		return nil, nil
	}

	workers := s.cfg.Sync.ExtractWorkers
	if workers < 1 {
		workers = 1
	}

	var (
		mu        sync.Mutex
		processed int
	)
	entries := make([]store.SnapshotEntry, len(changed))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i, file := range changed {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			absolute := filepath.Join(s.cfg.Paths.LibraryDir, filepath.FromSlash(file.path))
			meta, err := metadata.Extract(absolute)
			if err != nil {
				s.logger.Debug("metadata extraction fell back to filename",
					logging.String(logging.FieldPath, file.path),
					logging.Error(err))
			}
			payload, err := json.Marshal(meta)
			if err != nil {
				return fmt.Errorf("encode metadata for %q: %w", file.path, err)
			}
			entries[i] = store.SnapshotEntry{
				Path:         file.path,
				Size:         file.size,
				MTime:        file.mtime,
				MetadataJSON: string(payload),
			}
			mu.Lock()
			processed++
			if progress != nil {
				progress(processed, len(changed))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
