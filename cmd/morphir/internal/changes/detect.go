package changes

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/morphir-make/internal/errs"
	"github.com/albertocavalcante/morphir-make/internal/log"
)

// ScanConfig configures the detector.
type ScanConfig struct {
	Extensions []string // nil = every regular file
	IgnoreDirs []string // directory name prefixes to skip
	Workers    int      // concurrent file reads; <= 0 uses GOMAXPROCS
}

// Detector walks a source tree and classifies it against prior hashes.
type Detector struct {
	extensions map[string]bool
	ignoreDirs []string
	workers    int
}

// NewDetector creates a detector with the given config.
func NewDetector(cfg ScanConfig) *Detector {
	var extensions map[string]bool
	if len(cfg.Extensions) > 0 {
		extensions = make(map[string]bool, len(cfg.Extensions))
		for _, ext := range cfg.Extensions {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			extensions[ext] = true
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Detector{
		extensions: extensions,
		ignoreDirs: append([]string(nil), cfg.IgnoreDirs...),
		workers:    workers,
	}
}

// Detect classifies every regular file under root and every path in prior.
// Any unreadable file fails the whole pass; no partial ChangeSet is returned.
func (d *Detector) Detect(ctx context.Context, prior Hashes, root string) (ChangeSet, error) {
	files, err := d.enumerate(ctx, root)
	if err != nil {
		return nil, err
	}

	normalized := make(Hashes, len(prior))
	for p, h := range prior {
		normalized[NormalizePath(p)] = h
	}

	var (
		mu sync.Mutex
		cs = make(ChangeSet, len(files)+len(normalized))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			abs := filepath.Join(root, filepath.FromSlash(rel))
			content, err := os.ReadFile(abs)
			if err != nil {
				return errs.DetectionIO(abs, err)
			}

			change := classify(normalized, rel, content, HashBytes(content))
			if _, ok := change.(Unchanged); ok {
				content = nil
			}

			mu.Lock()
			cs[rel] = change
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for p, h := range normalized {
		if _, found := cs[p]; !found {
			cs[p] = Delete{Previous: h}
		}
	}

	log.V(log.VerbosityDebug).Debug("detected changes",
		"component", "changes", "root", root, "files", len(files), "tracked", len(normalized))

	return cs, nil
}

// enumerate lists regular files under root as normalized relative paths.
func (d *Detector) enumerate(ctx context.Context, root string) ([]Path, error) {
	// WalkDir does not descend into a symlinked root.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, errs.DetectionIO(root, err)
	}
	root = resolved

	var files []Path
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return errs.DetectionIO(path, err)
		}

		if entry.IsDir() {
			if path != root && d.IgnoresDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		if !d.Matches(path) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errs.DetectionIO(path, err)
		}
		files = append(files, NormalizePath(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// Matches reports whether a file path passes the extension filter.
func (d *Detector) Matches(path string) bool {
	return d.extensions == nil || d.extensions[filepath.Ext(path)]
}

// IgnoresDir reports whether a directory with the given name is skipped.
func (d *Detector) IgnoresDir(name string) bool {
	for _, prefix := range d.ignoreDirs {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Detect classifies root against prior using the default scan config.
func Detect(ctx context.Context, prior Hashes, root string) (ChangeSet, error) {
	return NewDetector(ScanConfig{}).Detect(ctx, prior, root)
}
