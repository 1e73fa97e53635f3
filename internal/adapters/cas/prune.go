package cas

import (
	"context"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Prune removes entries last written before now minus olderThan, together
// with abandoned temporary files. A non-positive olderThan removes everything.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (domain.PruneReport, error) {
	var report domain.PruneReport
	if s.dir == "" {
		return report, nil
	}

	shards, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return report, nil
		}
		return report, zerr.With(errors.Join(domain.ErrCachePruneFailed, err), "dir", s.dir)
	}

	cutoff := s.now().Add(-olderThan)
	all := olderThan <= 0

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		dir := filepath.Join(s.dir, shard.Name())
		g.Go(func() error {
			r, err := s.pruneShard(ctx, dir, cutoff, all)
			mu.Lock()
			report.Scanned += r.Scanned
			report.Removed += r.Removed
			report.Bytes += r.Bytes
			mu.Unlock()
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Store) pruneShard(ctx context.Context, dir string, cutoff time.Time, all bool) (domain.PruneReport, error) {
	var report domain.PruneReport

	files, err := os.ReadDir(dir)
	if err != nil {
		return report, zerr.With(errors.Join(domain.ErrCachePruneFailed, err), "dir", dir)
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := file.Name()
		isEntry := strings.HasSuffix(name, domain.CacheEntryExt)
		if file.IsDir() || (!isEntry && !strings.HasSuffix(name, tempSuffix)) {
			continue
		}

		info, err := file.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}
		report.Scanned++
		if !all && !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				continue
			}
			return report, zerr.With(errors.Join(domain.ErrCachePruneFailed, err), "path", filepath.Join(dir, name))
		}
		report.Removed++
		report.Bytes += info.Size()
		if isEntry && s.memory != nil {
			s.memory.Remove(strings.TrimSuffix(name, domain.CacheEntryExt))
		}
	}

	// Only succeeds when the shard is empty.
	_ = os.Remove(dir)
	return report, nil
}
