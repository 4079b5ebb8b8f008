package librarywatch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"redshift/internal/config"
	"redshift/internal/logging"
)

// Watcher triggers a callback when the library directory changes on disk.
// Bursts of filesystem events (an album copy, a tag rewrite) collapse into a
// single callback after the debounce window closes.
type Watcher struct {
	cfg      *config.Config
	logger   *slog.Logger
	onChange func()
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// New creates a library watcher. onChange runs on the watcher goroutine and
// should hand off work rather than block.
func New(cfg *config.Config, logger *slog.Logger, onChange func()) *Watcher {
	if logger == nil {
		logger = slog.New(logging.NoopHandler{})
	}
	debounce := time.Duration(cfg.Library.WatchDebounceSeconds) * time.Second
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "librarywatch"),
		onChange: onChange,
		debounce: debounce,
	}
}

// Start begins watching the library tree. Watching is best-effort: an
// unwatchable library leaves periodic scans as the only trigger.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("library watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("filesystem watcher unavailable; relying on explicit scans",
			logging.Error(err),
			logging.String(logging.FieldEventType, "watch_unavailable"),
			logging.String(logging.FieldImpact, "library changes detected only on scan"))
		return nil
	}

	if err := w.addTree(watcher, w.cfg.Paths.LibraryDir); err != nil {
		_ = watcher.Close()
		w.logger.Warn("failed to watch library directory",
			logging.Error(err),
			logging.String(logging.FieldPath, w.cfg.Paths.LibraryDir),
			logging.String(logging.FieldEventType, "watch_unavailable"))
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.watcher = watcher
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(runCtx, watcher)

	w.logger.Info("library watcher started",
		logging.String(logging.FieldEventType, "watch_started"),
		logging.String(logging.FieldPath, w.cfg.Paths.LibraryDir))
	return nil
}

// Stop halts the watcher and waits for its goroutine.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	watcher := w.watcher
	w.running = false
	w.cancel = nil
	w.watcher = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		_ = watcher.Close()
	}
	w.wg.Wait()
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") && path != root {
			return fs.SkipDir
		}
		return watcher.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// New directories must be watched before their files arrive.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(watcher, event.Name)
				}
			}
			if !pending {
				pending = true
			} else if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			if pending {
				pending = false
				w.logger.Debug("library change detected",
					logging.String(logging.FieldEventType, "library_changed"))
				if w.onChange != nil {
					w.onChange()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("library watch error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_error"))
		}
	}
}

// relevant filters events down to audio files and directories.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		// Probably a directory.
		return true
	}
	_, ok := w.cfg.ExtensionSet()[ext]
	return ok
}
