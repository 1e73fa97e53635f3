package app

import (
	"context"
	"path/filepath"
	"strings"

	"go.trai.ch/jit/internal/adapters/watcher" //nolint:depguard // Wired in app layer
)

// watch runs entry, then re-runs it after every settled batch of changes
// until ctx is done. Failed runs are logged and do not end the loop.
func (a *App) watch(ctx context.Context, s *session, entry string, async bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.watcher.Start(ctx, s.cwd); err != nil {
		return err
	}
	defer func() { _ = a.watcher.Stop() }()

	// Registry keys are resolved paths; "src/index" must invalidate "src/index.ts".
	if resolved, err := s.loader.Resolve(ctx, entry); err == nil {
		entry = resolved
	}

	batches := make(chan []string, 1)
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
		select {
		case batches <- paths:
		case <-ctx.Done():
		}
	})

	cacheDir := s.loader.CacheDir()
	go func() {
		for event := range a.watcher.Events() {
			if cacheDir != "" && within(cacheDir, event.Path) {
				continue
			}
			debouncer.Add(event.Path)
		}
	}()

	a.rerun(ctx, s, entry, async)
	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-batches:
			dropped := s.loader.InvalidateTree(append(paths, entry)...)
			a.logger.Info("change detected, re-running", "entry", entry, "changed", len(paths))
			a.logger.Debug("invalidated modules", "modules", strings.Join(dropped, ","))
			a.rerun(ctx, s, entry, async)
		}
	}
}

func (a *App) rerun(ctx context.Context, s *session, entry string, async bool) {
	if err := a.runEntry(ctx, s.loader, entry, async); err != nil && ctx.Err() == nil {
		a.logger.Error(err)
	}
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
