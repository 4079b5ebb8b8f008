package deviceindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"redshift/internal/config"
	"redshift/internal/device"
	"redshift/internal/logging"
)

// Entry is one track found on the device.
type Entry struct {
	Path string
	Size int64
	Key  string
}

// Index is the set of tracks already present on a device, keyed by
// normalized track name. Used to seed the ledger before the first sync so
// tracks already on the device are not transferred again.
type Index struct {
	source  string
	entries map[string][]Entry
	count   int
}

// Source names the strategy that produced the index.
func (x *Index) Source() string { return x.source }

// Len returns the number of indexed tracks.
func (x *Index) Len() int { return x.count }

// Lookup returns the entries matching a normalized key.
func (x *Index) Lookup(key string) []Entry { return x.entries[key] }

// Contains reports whether any track on the device matches the key.
func (x *Index) Contains(key string) bool { return len(x.entries[key]) > 0 }

// Entries returns all indexed entries.
func (x *Index) Entries() []Entry {
	all := make([]Entry, 0, x.count)
	for _, group := range x.entries {
		all = append(all, group...)
	}
	return all
}

var (
	trackNumberPrefix = regexp.MustCompile(`^\d{1,3}[\s\-._)]+`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	keyFolder         = cases.Fold()
)

// NormalizeKey reduces a file name to a comparison key: extension stripped,
// leading track number stripped, whitespace collapsed, case folded. Two
// names that normalize equal are treated as the same track.
func NormalizeKey(name string) string {
	base := path.Base(filepath.ToSlash(name))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = trackNumberPrefix.ReplaceAllString(base, "")
	base = whitespaceRun.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)
	return keyFolder.String(base)
}

// Strategy reads the device's track listing one particular way.
type Strategy interface {
	Name() string
	Read(ctx context.Context, info device.Info) ([]Entry, error)
}

// Reader tries each strategy in rank order. The first strategy that returns
// entries wins; a failing or empty strategy falls through to the next.
type Reader struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewReader builds the default ranked reader: a mounted-filesystem walk
// first, then a bridge remote listing.
func NewReader(cfg *config.Config, gateway device.Gateway, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(logging.NoopHandler{})
	}
	return &Reader{
		strategies: []Strategy{
			&mountStrategy{cfg: cfg},
			&bridgeStrategy{cfg: cfg, gateway: gateway},
		},
		logger: logging.NewComponentLogger(logger, "deviceindex"),
	}
}

// NewReaderWithStrategies builds a reader over an explicit strategy ranking.
func NewReaderWithStrategies(logger *slog.Logger, strategies ...Strategy) *Reader {
	if logger == nil {
		logger = slog.New(logging.NoopHandler{})
	}
	return &Reader{strategies: strategies, logger: logging.NewComponentLogger(logger, "deviceindex")}
}

// Read builds the device index. Connection loss aborts immediately; any
// other strategy failure falls through to the next strategy. When every
// strategy fails the last error is returned.
func (r *Reader) Read(ctx context.Context, info device.Info) (*Index, error) {
	var lastErr error
	for _, strategy := range r.strategies {
		entries, err := strategy.Read(ctx, info)
		if err != nil {
			if errors.Is(err, device.ErrConnectionLost) {
				return nil, err
			}
			r.logger.Debug("index strategy failed",
				logging.String("strategy", strategy.Name()),
				logging.Error(err))
			lastErr = err
			continue
		}
		if len(entries) == 0 {
			r.logger.Debug("index strategy returned no tracks",
				logging.String("strategy", strategy.Name()))
			continue
		}
		index := buildIndex(strategy.Name(), entries)
		r.logger.Info("device index built",
			logging.String(logging.FieldEventType, "device_indexed"),
			logging.String("strategy", strategy.Name()),
			logging.Int("tracks", index.Len()))
		return index, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("all index strategies failed: %w", lastErr)
	}
	// Every strategy succeeded but found nothing; the device is empty.
	return buildIndex("empty", nil), nil
}

func buildIndex(source string, entries []Entry) *Index {
	index := &Index{source: source, entries: make(map[string][]Entry, len(entries))}
	for _, entry := range entries {
		if entry.Key == "" {
			entry.Key = NormalizeKey(entry.Path)
		}
		if entry.Key == "" {
			continue
		}
		index.entries[entry.Key] = append(index.entries[entry.Key], entry)
		index.count++
	}
	return index
}

// mountStrategy walks the device's media directory through a host mount,
// available when a userspace filesystem has the device mounted.
type mountStrategy struct {
	cfg *config.Config
}

func (s *mountStrategy) Name() string { return "mount" }

func (s *mountStrategy) Read(ctx context.Context, info device.Info) ([]Entry, error) {
	mountDir := strings.TrimSpace(s.cfg.Device.MountDir)
	if mountDir == "" {
		return nil, nil
	}
	root := filepath.Join(mountDir, filepath.FromSlash(s.cfg.Device.MediaDir))
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat device mount: %w", err)
	}

	extensions := s.cfg.ExtensionSet()
	var entries []Entry
	err := filepath.WalkDir(root, func(walkPath string, entry fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if _, ok := extensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, walkPath)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// bridgeStrategy asks the bridge for a remote listing of the media
// directory.
type bridgeStrategy struct {
	cfg     *config.Config
	gateway device.Gateway
}

func (s *bridgeStrategy) Name() string { return "bridge" }

func (s *bridgeStrategy) Read(ctx context.Context, info device.Info) ([]Entry, error) {
	if s.gateway == nil {
		return nil, nil
	}
	files, err := s.gateway.ListFiles(ctx, info.UDID, s.cfg.Device.MediaDir)
	if err != nil {
		return nil, err
	}
	extensions := s.cfg.ExtensionSet()
	entries := make([]Entry, 0, len(files))
	for _, file := range files {
		if _, ok := extensions[strings.ToLower(path.Ext(file.Path))]; !ok {
			continue
		}
		entries = append(entries, Entry{Path: file.Path, Size: file.Size})
	}
	return entries, nil
}
