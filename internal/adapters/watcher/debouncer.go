// Package watcher reports source changes for watch mode.
package watcher

import (
	"slices"
	"sync"
	"time"
)

// DefaultDebounceWindow is how long the debouncer waits for events to settle.
const DefaultDebounceWindow = 100 * time.Millisecond

// Debouncer coalesces bursts of file events into one sorted batch of paths.
type Debouncer struct {
	mu       sync.Mutex
	pending  map[string]struct{}
	timer    *time.Timer
	window   time.Duration
	callback func(paths []string)
}

// NewDebouncer creates a debouncer calling callback once events have been
// quiet for window.
func NewDebouncer(window time.Duration, callback func(paths []string)) *Debouncer {
	return &Debouncer{
		pending:  make(map[string]struct{}),
		window:   window,
		callback: callback,
	}
}

// Add records path and restarts the window.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	paths := d.drainLocked()
	d.timer = nil
	d.mu.Unlock()

	if len(paths) > 0 && d.callback != nil {
		d.callback(paths)
	}
}

// Flush runs the callback for pending paths now and waits for it.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		if !d.timer.Stop() {
			// Already firing.
			d.mu.Unlock()
			return
		}
		d.timer = nil
	}
	paths := d.drainLocked()
	d.mu.Unlock()

	if len(paths) > 0 && d.callback != nil {
		d.callback(paths)
	}
}

func (d *Debouncer) drainLocked() []string {
	if len(d.pending) == 0 {
		return nil
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	clear(d.pending)
	slices.Sort(paths)
	return paths
}
