// Package app implements the application layer for jit.
package app

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/jit/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/jit/pkg/jit"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	transformer  ports.Transformer
	tracer       ports.Tracer
	walker       Walker
	watcher      ports.Watcher
	getwd        func() (string, error)
}

// Walker lists the files warmed into the cache.
type Walker interface {
	WalkFiles(root string, exts, skip []string) iter.Seq[string]
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	transformer ports.Transformer,
	tracer ports.Tracer,
	walker Walker,
	watcher ports.Watcher,
) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		transformer:  transformer,
		tracer:       tracer,
		walker:       walker,
		watcher:      watcher,
		getwd:        os.Getwd,
	}
}

// WithWorkingDir makes the App treat dir as the working directory.
// This is primarily used for testing.
func (a *App) WithWorkingDir(dir string) *App {
	a.getwd = func() (string, error) { return dir, nil }
	return a
}

// Overrides are option values given on the command line. They take
// precedence over the config file and the environment.
type Overrides struct {
	NoCache   bool
	CacheDir  string
	Interop   bool
	Debug     bool
	JSONLogs  bool
	Trace     bool
	Alias     map[string]string
	Native    []string
	Transform []string
}

func (o Overrides) apply(opts *domain.LoaderOptions) {
	if o.NoCache {
		opts.Cache = false
	}
	if o.CacheDir != "" {
		opts.Cache = true
		opts.CacheDir = o.CacheDir
	}
	if o.Interop {
		opts.Interop = true
	}
	if o.Debug {
		opts.Debug = true
	}
	if len(o.Alias) > 0 {
		if opts.Alias == nil {
			opts.Alias = make(map[string]string, len(o.Alias))
		}
		for from, to := range o.Alias {
			opts.Alias[from] = to
		}
	}
	opts.NativeModules = append(opts.NativeModules, o.Native...)
	opts.TransformModules = append(opts.TransformModules, o.Transform...)
}

// logSwitches is implemented by loggers whose format can change at runtime.
type logSwitches interface {
	SetDebug(enabled bool)
	SetJSON(enabled bool)
}

// session is one configured loader bound to a working directory.
type session struct {
	cwd      string
	opts     domain.LoaderOptions
	loader   *jit.Loader
	shutdown func(context.Context) error
}

func (s *session) Close() {
	_ = s.loader.Close()
	if s.shutdown != nil {
		_ = s.shutdown(context.Background())
	}
}

func (a *App) open(ov Overrides) (*session, error) {
	cwd, err := a.getwd()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to get working directory")
	}

	opts, err := a.configLoader.Load(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	ov.apply(&opts)

	if sw, ok := a.logger.(logSwitches); ok {
		sw.SetDebug(opts.Debug || ov.Trace)
		sw.SetJSON(ov.JSONLogs)
	}

	var shutdown func(context.Context) error
	if ov.Trace {
		shutdown = telemetry.Install(a.logger)
	}

	loader, err := jit.New(opts,
		jit.WithCwd(cwd),
		jit.WithLogger(a.logger),
		jit.WithTransformer(a.transformer),
		jit.WithTracer(a.tracer),
	)
	if err != nil {
		if shutdown != nil {
			_ = shutdown(context.Background())
		}
		return nil, err
	}
	return &session{cwd: cwd, opts: opts, loader: loader, shutdown: shutdown}, nil
}

func (s *session) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.cwd, path)
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	Async bool
	Watch bool
	Overrides
}

// Run loads and executes the entry module. With Watch it keeps running and
// re-executes the entry whenever a file below the working directory changes.
func (a *App) Run(ctx context.Context, entry string, opts RunOptions) error {
	s, err := a.open(opts.Overrides)
	if err != nil {
		return err
	}
	defer s.Close()

	entry = s.abs(entry)
	if !opts.Watch {
		return a.runEntry(ctx, s.loader, entry, opts.Async)
	}
	return a.watch(ctx, s, entry, opts.Async)
}

func (a *App) runEntry(ctx context.Context, loader *jit.Loader, entry string, async bool) error {
	var err error
	if async {
		_, err = loader.Import(ctx, entry).Wait(ctx)
	} else {
		_, err = loader.Require(ctx, entry)
	}
	if err != nil {
		return zerr.With(errors.Join(domain.ErrEntryFailed, err), "entry", entry)
	}
	return nil
}

// TransformOptions configuration for the Transform method.
type TransformOptions struct {
	Async bool
	Overrides
}

// Transform returns the executable code for file.
func (a *App) Transform(ctx context.Context, file string, opts TransformOptions) (string, error) {
	s, err := a.open(opts.Overrides)
	if err != nil {
		return "", err
	}
	defer s.Close()

	path := s.abs(file)
	source, err := os.ReadFile(path)
	if err != nil {
		return "", zerr.With(errors.Join(domain.ErrSourceReadFailed, err), "path", path)
	}

	return s.loader.Transform(ctx, domain.TransformOptions{
		Source:     string(source),
		Filename:   path,
		Async:      opts.Async,
		SourceMaps: s.opts.SourceMaps,
		Interop:    s.opts.Interop,
	})
}

// CacheDir returns the transform cache directory, or "" when caching is off.
func (a *App) CacheDir(ov Overrides) (string, error) {
	s, err := a.open(ov)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return s.loader.CacheDir(), nil
}

// PruneCache removes cache entries older than olderThan. Zero selects the
// configured retention; a negative value removes every entry.
func (a *App) PruneCache(ctx context.Context, olderThan time.Duration, ov Overrides) (domain.PruneReport, error) {
	s, err := a.open(ov)
	if err != nil {
		return domain.PruneReport{}, err
	}
	defer s.Close()

	if olderThan == 0 {
		olderThan = s.opts.CacheRetention
	}
	if olderThan < 0 {
		olderThan = 0
	}

	report, err := s.loader.Prune(ctx, olderThan)
	if err != nil {
		return report, err
	}
	a.logger.Debug("pruned transform cache", "dir", s.loader.CacheDir(), "removed", report.Removed)
	return report, nil
}

// CleanCache removes every cache entry.
func (a *App) CleanCache(ctx context.Context, ov Overrides) (domain.PruneReport, error) {
	return a.PruneCache(ctx, -1, ov)
}
