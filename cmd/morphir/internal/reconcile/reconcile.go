package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"github.com/albertocavalcante/morphir-make/internal/errs"
	"github.com/albertocavalcante/morphir-make/internal/log"
)

// Action is what happened to one output file.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionCopy   Action = "COPY"
)

// Entry records one applied file mutation.
type Entry struct {
	Action Action `json:"action"`
	Path   string `json:"path"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s - %s", e.Action, e.Path)
}

// Report lists the mutations applied by a reconcile, writes first, each
// group sorted by path.
type Report struct {
	Entries []Entry `json:"entries"`
}

// Count returns the number of entries with the given action.
func (r *Report) Count(action Action) int {
	n := 0
	for _, e := range r.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// Paths returns the paths of entries with the given action.
func (r *Report) Paths(action Action) []string {
	var paths []string
	for _, e := range r.Entries {
		if e.Action == action {
			paths = append(paths, e.Path)
		}
	}
	return paths
}

// Reconciler applies generated files to an output directory.
type Reconciler struct {
	workers int
	out     io.Writer
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithWorkers bounds the number of concurrent writes.
func WithWorkers(n int) Option {
	return func(r *Reconciler) {
		r.workers = n
	}
}

// WithOutput sets where the "ACTION - path" lines are printed.
func WithOutput(w io.Writer) Option {
	return func(r *Reconciler) {
		r.out = w
	}
}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{out: io.Discard}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers <= 0 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	return r
}

// Reconcile writes every desired file under root and deletes every other
// regular file found there. Empty directories are left in place.
//
// It is not transactional: a failure on one file does not stop the others and
// nothing already applied is rolled back. All per-file failures are joined
// into the returned error, alongside a report of what did succeed.
func (r *Reconciler) Reconcile(ctx context.Context, root string, desired []GeneratedFile) (*Report, error) {
	logger := log.Component("reconcile")

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.ReconcileIO("create output directory", root, err)
	}

	var (
		mu       sync.Mutex
		writes   []Entry
		deletes  []Entry
		failures []error
	)
	fail := func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}

	// Later entries for the same path win.
	targets := make(map[string]GeneratedFile, len(desired))
	for _, f := range desired {
		if !f.Local() {
			fail(errs.ReconcileIO("write", f.RelPath(), ErrUnsafePath))
			continue
		}
		targets[f.Path(root)] = f
	}
	keep := make(map[string]bool, len(targets))
	for p := range targets {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, errs.ReconcileIO("resolve path", p, err)
		}
		keep[abs] = true
	}

	var wg sync.WaitGroup

	// The sweep only needs the desired set, so it runs alongside the writes.
	wg.Add(1)
	go func() {
		defer wg.Done()
		stale, err := findStale(ctx, root, keep)
		if err != nil {
			fail(err)
		}
		for _, p := range stale {
			if err := os.Remove(p); err != nil {
				fail(errs.ReconcileIO("delete", p, err))
				continue
			}
			mu.Lock()
			deletes = append(deletes, Entry{Action: ActionDelete, Path: p})
			mu.Unlock()
		}
	}()

	sem := make(chan struct{}, r.workers)
	for p, f := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			action, err := writeFile(p, f.Content)
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			writes = append(writes, Entry{Action: action, Path: p})
			mu.Unlock()
		}()
	}
	wg.Wait()

	byPath := func(a, b Entry) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	}
	slices.SortFunc(writes, byPath)
	slices.SortFunc(deletes, byPath)

	report := &Report{Entries: append(writes, deletes...)}
	for _, e := range report.Entries {
		fmt.Fprintln(r.out, e)
	}

	logger.Debug("reconciled output",
		"root", root,
		"inserted", report.Count(ActionInsert),
		"updated", report.Count(ActionUpdate),
		"deleted", report.Count(ActionDelete),
		"failures", len(failures))

	return report, errors.Join(failures...)
}

// writeFile overwrites an existing file or creates it with its parents.
func writeFile(p string, content []byte) (Action, error) {
	action := ActionInsert
	if _, err := os.Stat(p); err == nil {
		action = ActionUpdate
	} else if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errs.ReconcileIO("create directory", filepath.Dir(p), err)
	}

	if err := os.WriteFile(p, content, 0o644); err != nil {
		return "", errs.ReconcileIO("write", p, err)
	}
	return action, nil
}

// findStale lists regular files under root whose absolute path is not kept.
// Returned paths are rooted at root even when root is a symlink.
func findStale(ctx context.Context, root string, keep map[string]bool) ([]string, error) {
	// WalkDir does not descend into a symlinked root.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, errs.ReconcileIO("scan", root, err)
	}

	var stale []string
	err = filepath.WalkDir(resolved, func(p string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return errs.ReconcileIO("scan", p, err)
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(resolved, p)
		if err != nil {
			return errs.ReconcileIO("resolve path", p, err)
		}
		p = filepath.Join(root, rel)
		abs, err := filepath.Abs(p)
		if err != nil {
			return errs.ReconcileIO("resolve path", p, err)
		}
		if !keep[abs] {
			stale = append(stale, p)
		}
		return nil
	})
	return stale, err
}
