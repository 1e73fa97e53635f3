package app

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"go.trai.ch/jit/internal/adapters/policy"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/engine/pipeline"
	"golang.org/x/sync/errgroup"
)

// WarmReport summarizes a cache warm-up.
type WarmReport struct {
	Transformed int
	Skipped     int
	Failed      []string
}

// WarmCache transforms every source file below dir that needs it, so later
// loads hit the cache. Files that fail to transform are reported and do not
// stop the walk.
func (a *App) WarmCache(ctx context.Context, dir string, ov Overrides) (WarmReport, error) {
	var report WarmReport

	s, err := a.open(ov)
	if err != nil {
		return report, err
	}
	defer s.Close()

	if s.loader.CacheDir() == "" {
		a.logger.Warn("transform cache is disabled, nothing to warm")
		return report, nil
	}

	root := s.abs(dir)
	exts := slices.DeleteFunc(slices.Clone(s.opts.Extensions), func(ext string) bool {
		return ext == ".json"
	})
	matcher := policy.NewMatcher(s.opts.NativeModules, s.opts.TransformModules)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for path := range a.walker.WalkFiles(root, exts, []string{domain.NodeModulesDirName}) {
		g.Go(func() error {
			transformed, err := a.warmFile(ctx, s, matcher, path)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				a.logger.Warn("failed to warm module", "path", path, "error", err)
				report.Failed = append(report.Failed, path)
			case transformed:
				report.Transformed++
			default:
				report.Skipped++
			}
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	slices.Sort(report.Failed)
	return report, nil
}

func (a *App) warmFile(ctx context.Context, s *session, matcher *policy.Matcher, path string) (bool, error) {
	class := matcher.Classify(path)
	if class == domain.ClassNative {
		return false, nil
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if !pipeline.NeedsTransform(filepath.Ext(path), string(source), class) {
		return false, nil
	}

	_, err = s.loader.Transform(ctx, domain.TransformOptions{
		Source:     string(source),
		Filename:   path,
		SourceMaps: s.opts.SourceMaps,
		Interop:    s.opts.Interop,
	})
	return err == nil, err
}
