// Package watch rebuilds a project when its source files change.
package watch

import (
	"sync"
	"time"
)

// MaxPendingPaths is the maximum number of changed paths held before a flush
// is forced, bounding memory under rapid file creation.
const MaxPendingPaths = 1000

// Debouncer coalesces rapid change events into one batch per quiet window,
// so an editor autosave or a formatter run triggers a single rebuild.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	window  time.Duration
	onFlush func(paths []string)
	stopped bool
}

// NewDebouncer creates a debouncer. onFlush receives the distinct paths
// added since the last flush once window passes without a new event.
func NewDebouncer(window time.Duration, onFlush func(paths []string)) *Debouncer {
	return &Debouncer{
		pending: make(map[string]struct{}),
		window:  window,
		onFlush: onFlush,
	}
}

// Add records a changed path and restarts the window.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	d.pending[path] = struct{}{}
	if d.timer != nil {
		// A timer that already fired finds pending empty or refilled; both are fine.
		d.timer.Stop()
		d.timer = nil
	}

	if len(d.pending) >= MaxPendingPaths {
		paths := d.takeLocked()
		d.mu.Unlock()
		d.emit(paths)
		return
	}

	d.timer = time.AfterFunc(d.window, d.FlushNow)
	d.mu.Unlock()
}

// FlushNow emits pending paths immediately.
func (d *Debouncer) FlushNow() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var paths []string
	if !d.stopped {
		paths = d.takeLocked()
	}
	d.mu.Unlock()

	d.emit(paths)
}

// Stop flushes pending paths and ignores every later Add.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	paths := d.takeLocked()
	d.stopped = true
	d.mu.Unlock()

	d.emit(paths)
}

// PendingCount returns the number of paths waiting to be flushed.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// takeLocked drains pending. Caller must hold d.mu.
func (d *Debouncer) takeLocked() []string {
	if len(d.pending) == 0 {
		return nil
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	d.pending = make(map[string]struct{})
	return paths
}

// emit calls the handler outside the lock.
func (d *Debouncer) emit(paths []string) {
	if len(paths) > 0 && d.onFlush != nil {
		d.onFlush(paths)
	}
}
