package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/jit/internal/adapters/fs"
	"go.trai.ch/jit/internal/adapters/watcher"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/jit/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newWatcher(t *testing.T) *watcher.Watcher {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()

	w := watcher.NewWatcher(fs.NewWalker(), log)
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func waitFor(t *testing.T, w *watcher.Watcher, path string) ports.WatchEvent {
	t.Helper()
	found := make(chan ports.WatchEvent, 1)
	go func() {
		for ev := range w.Events() {
			if ev.Path == path {
				found <- ev
				return
			}
		}
	}()

	select {
	case ev := <-found:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("no event for %s", path)
		return ports.WatchEvent{}
	}
}

func TestWatcher_ReportsWrites(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o750))
	file := filepath.Join(src, "a.ts")
	require.NoError(t, os.WriteFile(file, []byte("export {}"), 0o600))

	w := newWatcher(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	require.NoError(t, w.Start(ctx, root))

	require.NoError(t, os.WriteFile(file, []byte("export const a = 1"), 0o600))

	ev := waitFor(t, w, file)
	assert.Contains(t, []ports.WatchOp{ports.OpWrite, ports.OpCreate}, ev.Operation)
}

func TestWatcher_WatchesCreatedDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w := newWatcher(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	require.NoError(t, w.Start(ctx, root))

	dir := filepath.Join(root, "lib")
	file := filepath.Join(dir, "b.ts")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range w.Events() {
			if ev.Path == dir {
				// Give the watcher a moment to register the new directory.
				time.Sleep(50 * time.Millisecond)
				_ = os.WriteFile(file, []byte("export {}"), 0o600)
			}
			if ev.Path == file {
				return
			}
		}
	}()

	require.NoError(t, os.Mkdir(dir, 0o750))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no event for file in created directory")
	}
}

func TestWatcher_EventsEndAfterCancel(t *testing.T) {
	t.Parallel()

	w := newWatcher(t)
	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, w.Start(ctx, t.TempDir()))
	cancel()

	done := make(chan struct{})
	go func() {
		for range w.Events() {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("events did not end after cancel")
	}
}

func TestWatcher_StartOnce(t *testing.T) {
	t.Parallel()

	w := newWatcher(t)
	require.NoError(t, w.Start(t.Context(), t.TempDir()))
	require.ErrorIs(t, w.Start(t.Context(), t.TempDir()), domain.ErrWatcherStarted)
}

func TestWatcher_StopBeforeStart(t *testing.T) {
	t.Parallel()

	w := newWatcher(t)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	for range w.Events() {
		t.Fatal("stopped watcher must not yield")
	}
	require.ErrorIs(t, w.Start(t.Context(), t.TempDir()), domain.ErrWatcherStarted)
}
