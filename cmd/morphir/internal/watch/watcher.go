package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/changes"
)

// DefaultDebounce is used when Config.Debounce is not positive.
const DefaultDebounce = 500 * time.Millisecond

// RebuildFunc runs one build and returns a one-line summary of it.
type RebuildFunc func(ctx context.Context, paths []string) (string, error)

// Config configures the watcher.
type Config struct {
	Root     string             // source directory to watch
	Scan     changes.ScanConfig // same filters the build uses
	Exclude  []string           // absolute paths whose events are ignored
	Debounce time.Duration
	Rebuild  RebuildFunc

	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// Watcher re-runs a build whenever matching files under Root change.
type Watcher struct {
	config    Config
	fsWatcher *fsnotify.Watcher
	filter    *changes.Detector
	debouncer *Debouncer
	logger    *Logger
	exclude   map[string]bool
	files     int

	ctx context.Context

	// buildMu prevents concurrent rebuilds
	buildMu sync.Mutex
}

// New creates a new watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Rebuild == nil {
		return nil, errors.New("watch: no rebuild function configured")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	exclude := make(map[string]bool, len(cfg.Exclude))
	for _, p := range cfg.Exclude {
		if abs, err := filepath.Abs(p); err == nil {
			exclude[abs] = true
		}
	}

	return &Watcher{
		config:    cfg,
		fsWatcher: fsWatcher,
		filter:    changes.NewDetector(cfg.Scan),
		logger: NewLogger(LoggerConfig{
			Writer:  cfg.Writer,
			Verbose: cfg.Verbose,
			NoColor: cfg.NoColor,
			JSON:    cfg.JSON,
		}),
		exclude: exclude,
	}, nil
}

// Logger returns the watcher's output logger.
func (w *Watcher) Logger() *Logger {
	return w.logger
}

// Run starts the watch loop. It blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.ctx = ctx

	window := w.config.Debounce
	if window <= 0 {
		window = DefaultDebounce
	}
	w.debouncer = NewDebouncer(window, w.handleChanged)
	defer w.debouncer.Stop()

	if err := w.addRecursive(w.config.Root); err != nil {
		return fmt.Errorf("failed to watch source directory: %w", err)
	}

	w.logger.Ready(w.files, w.config.Root)

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err)
		}
	}
}

// addRecursive adds a directory and all subdirectories to the watcher,
// counting the files that pass the scan filter along the way.
func (w *Watcher) addRecursive(root string) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				if w.config.Verbose {
					w.logger.Error(fmt.Errorf("permission denied: %s", path))
				}
				return nil
			}
			w.logger.Error(fmt.Errorf("walk error at %s: %w", path, err))
			return nil
		}

		if !d.IsDir() {
			if d.Type().IsRegular() && w.filter.Matches(path) {
				w.files++
			}
			return nil
		}

		if path != root && w.filter.IgnoresDir(d.Name()) {
			return filepath.SkipDir
		}

		if err := w.fsWatcher.Add(path); err != nil {
			if isWatchLimitError(err) {
				return fmt.Errorf("%w at %s: %v\n"+
					"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288",
					ErrWatchLimitReached, path, err)
			}
			if w.config.Verbose {
				w.logger.Error(fmt.Errorf("failed to watch %s: %w", path, err))
			}
		}
		return nil
	})
}

// isWatchLimitError checks if an error is due to inotify watch limits.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "too many open files")
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if abs, err := filepath.Abs(path); err == nil && w.exclude[abs] {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.filter.IgnoresDir(filepath.Base(path)) {
				return
			}
			if err := w.addRecursive(path); err != nil {
				w.logger.Error(fmt.Errorf("failed to watch new directory %s: %w", path, err))
			}
			// Files created before the watch was added produce no event.
			w.debouncer.Add(w.relative(path))
			return
		}
	}

	if !w.filter.Matches(path) {
		return
	}

	var changeType ChangeType
	switch {
	case event.Has(fsnotify.Create):
		changeType = ChangeAdded
	case event.Has(fsnotify.Write):
		changeType = ChangeModified
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		changeType = ChangeDeleted
	default:
		return // chmod
	}

	rel := w.relative(path)
	w.logger.FileChanged(rel, changeType)
	w.debouncer.Add(rel)
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.config.Root, path)
	if err != nil {
		return path
	}
	return changes.NormalizePath(rel)
}

// handleChanged is called when the debouncer flushes.
func (w *Watcher) handleChanged(paths []string) {
	if len(paths) == 0 {
		return
	}

	w.buildMu.Lock()
	defer w.buildMu.Unlock()

	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	slices.Sort(paths)
	w.logger.Rebuilding(paths)

	summary, err := w.config.Rebuild(ctx, paths)
	if err != nil {
		w.logger.Error(err)
		return
	}
	w.logger.Built(summary)
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

// ErrWatchLimitReached is returned when the OS watch limit is exceeded.
var ErrWatchLimitReached = errors.New("filesystem watch limit reached")
