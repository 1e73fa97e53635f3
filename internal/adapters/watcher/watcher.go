package watcher

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/jit/internal/adapters/fs"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Watcher = (*Watcher)(nil)

// skipDirs are never watched.
var skipDirs = []string{domain.NodeModulesDirName}

const eventChannelBuffer = 100

// Watcher implements ports.Watcher with fsnotify, watching every directory
// below the root.
type Watcher struct {
	walker *fs.Walker
	logger ports.Logger
	events chan ports.WatchEvent

	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	stopped   bool
}

// NewWatcher creates a watcher. No file handles are opened until Start.
func NewWatcher(walker *fs.Walker, logger ports.Logger) *Watcher {
	return &Watcher{
		walker: walker,
		logger: logger,
		events: make(chan ports.WatchEvent, eventChannelBuffer),
	}
}

// Start watches root and its subdirectories until ctx is done or Stop is
// called. A watcher can be started once.
func (w *Watcher) Start(ctx context.Context, root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped || w.fsWatcher != nil {
		return domain.ErrWatcherStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return zerr.Wrap(err, "failed to create file watcher")
	}
	for dir := range w.walker.WalkDirs(root, skipDirs) {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return zerr.With(zerr.Wrap(err, "failed to watch directory"), "dir", dir)
		}
	}
	w.fsWatcher = fsw

	go w.processEvents(ctx, fsw)
	return nil
}

// Stop releases the watcher. Events ends once pending events are consumed.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	if w.fsWatcher == nil {
		close(w.events)
		return nil
	}
	return w.fsWatcher.Close()
}

// Events yields file events until the watcher stops.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

func (w *Watcher) processEvents(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			watchEvent, ok := convertEvent(event)
			if !ok {
				continue
			}

			select {
			case w.events <- watchEvent:
			case <-ctx.Done():
				return
			}

			if watchEvent.Operation == ports.OpCreate {
				w.addCreatedDir(fsw, event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) addCreatedDir(fsw *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	for dir := range w.walker.WalkDirs(path, skipDirs) {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("failed to watch directory", "dir", dir, "error", err)
		}
	}
}

func convertEvent(event fsnotify.Event) (ports.WatchEvent, bool) {
	path := filepath.Clean(event.Name)

	switch {
	case event.Has(fsnotify.Write):
		return ports.WatchEvent{Path: path, Operation: ports.OpWrite}, true
	case event.Has(fsnotify.Create):
		return ports.WatchEvent{Path: path, Operation: ports.OpCreate}, true
	case event.Has(fsnotify.Remove):
		return ports.WatchEvent{Path: path, Operation: ports.OpRemove}, true
	case event.Has(fsnotify.Rename):
		return ports.WatchEvent{Path: path, Operation: ports.OpRename}, true
	default:
		return ports.WatchEvent{}, false
	}
}
