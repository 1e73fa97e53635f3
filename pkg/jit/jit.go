// Package jit loads TypeScript, JSX and ES module sources into a goja
// runtime. Sources are transformed on first use and the output is kept in a
// content-addressed cache shared by every loader using the same directory.
package jit

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.trai.ch/jit/internal/adapters/cas"
	"go.trai.ch/jit/internal/adapters/esbuild"
	"go.trai.ch/jit/internal/adapters/fs"
	"go.trai.ch/jit/internal/adapters/host"
	"go.trai.ch/jit/internal/adapters/logger"
	"go.trai.ch/jit/internal/adapters/policy"
	"go.trai.ch/jit/internal/adapters/telemetry"
	"go.trai.ch/jit/internal/build"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/engine/executor"
	"go.trai.ch/jit/internal/engine/pipeline"
	"go.trai.ch/zerr"
)

const (
	globalRequire = "require"
	globalImport  = "__jitImport"

	evalFilename = "eval.js"
)

// Loader resolves, transforms and executes modules in one runtime.
type Loader struct {
	opts     Options
	cwd      string
	vm       *goja.Runtime
	registry *domain.Registry
	store    *cas.Store
	pipeline *pipeline.Pipeline
	exec     *executor.Executor
	logger   Logger
	closed   atomic.Bool
}

// EvalOptions configures EvalModule.
type EvalOptions struct {
	// Filename names the module. Relative names are taken from the loader's
	// working directory; empty selects eval.js there.
	Filename string
	// Ext selects the syntax, e.g. "ts", when Filename has no extension.
	Ext string
	// Async runs the source as an async module body, allowing top-level
	// await. EvalModule then waits for the body to settle.
	Async bool
}

// New creates a Loader. opts is copied; later changes have no effect.
func New(opts Options, options ...Option) (*Loader, error) {
	s := settings{}
	for _, o := range options {
		o(&s)
	}

	cwd := s.cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to get working directory")
		}
		cwd = wd
	}
	cwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid working directory"), "cwd", cwd)
	}

	opts = opts.Clone()
	if s.logger == nil {
		l := logger.New()
		l.SetDebug(opts.Debug)
		s.logger = l
	}
	if s.tracer == nil {
		s.tracer = telemetry.NewNoOpTracer()
	}
	if s.transformer == nil {
		s.transformer = esbuild.NewTransformer()
	}
	if s.vm == nil {
		s.vm = goja.New()
	}

	store := cas.Open(cas.Config{
		Enabled: opts.Cache,
		Dir:     opts.CacheDir,
		Cwd:     cwd,
		Version: opts.CacheVersion,
	}, s.logger)
	pipe := pipeline.New(fs.NewHasher(), store, s.transformer, s.tracer, s.logger)
	registry := domain.NewRegistry()

	exec := executor.New(s.vm, executor.Deps{
		Registry:    registry,
		Resolver:    fs.NewResolver(opts.Extensions, opts.Alias),
		Policy:      policy.NewMatcher(opts.NativeModules, opts.TransformModules),
		Transformer: pipe,
		Native:      host.NewNativeLoader(s.vm, s.requireOptions...),
		Tracer:      s.tracer,
		Logger:      s.logger,
	}, executor.Options{
		RequireCache:  opts.RequireCache,
		SourceMaps:    opts.SourceMaps,
		Interop:       opts.Interop,
		EngineVersion: EngineVersion(opts),
		Extra:         opts.TransformOptions,
	})

	s.logger.Debug("loader ready", "cwd", cwd, "cache", store.Dir())

	return &Loader{
		opts:     opts,
		cwd:      cwd,
		vm:       s.vm,
		registry: registry,
		store:    store,
		pipeline: pipe,
		exec:     exec,
		logger:   s.logger,
	}, nil
}

// EngineVersion identifies the code generation of a loader. It is part of
// every fingerprint, so upgrading the loader or bumping the cache version
// invalidates older entries.
func EngineVersion(opts Options) string {
	version := opts.CacheVersion
	if version == "" {
		version = domain.DefaultCacheVersion
	}
	return build.Version + "/" + version
}

// Require loads specifier synchronously, resolving it from the working
// directory, and returns its exports.
func (l *Loader) Require(ctx context.Context, specifier string) (goja.Value, error) {
	if l.closed.Load() {
		return nil, domain.ErrLoaderClosed
	}
	return l.exec.Require(ctx, specifier, l.cwd)
}

// Resolve returns the file specifier names from the working directory,
// without loading it.
func (l *Loader) Resolve(ctx context.Context, specifier string) (string, error) {
	if l.closed.Load() {
		return "", domain.ErrLoaderClosed
	}
	mod, err := l.exec.Resolve(ctx, specifier, l.cwd)
	if err != nil {
		return "", err
	}
	return mod.AbsolutePath, nil
}

// Import loads specifier asynchronously. Modules may use top-level await.
// Cancelling ctx interrupts a running module body.
func (l *Loader) Import(ctx context.Context, specifier string) *Pending {
	if l.closed.Load() {
		return executor.Failed(domain.ErrLoaderClosed)
	}
	return l.exec.Import(ctx, specifier, l.cwd)
}

// Transform returns the executable code for opts, using the cache. TS and
// JSX are derived from the filename when neither is set, and the loader's
// default extras are merged under opts.Extra.
func (l *Loader) Transform(ctx context.Context, opts TransformOptions) (string, error) {
	if l.closed.Load() {
		return "", domain.ErrLoaderClosed
	}

	if !opts.TS && !opts.JSX {
		opts.TS, opts.JSX = pipeline.SyntaxFlags(filepath.Ext(opts.Filename))
	}
	if opts.EngineVersion == "" {
		opts.EngineVersion = EngineVersion(l.opts)
	}
	if len(l.opts.TransformOptions) > 0 {
		extra := make(Extras, len(l.opts.TransformOptions)+len(opts.Extra))
		maps.Copy(extra, l.opts.TransformOptions)
		maps.Copy(extra, opts.Extra)
		opts.Extra = extra
	}

	res, err := l.pipeline.Transform(ctx, opts)
	if err != nil {
		return "", err
	}
	return res.Code, nil
}

// EvalModule runs source as a module, transforming it when its syntax needs
// it, and returns its exports. The file named by opts is never read.
func (l *Loader) EvalModule(ctx context.Context, source string, opts EvalOptions) (goja.Value, error) {
	if l.closed.Load() {
		return nil, domain.ErrLoaderClosed
	}

	filename := opts.Filename
	if filename == "" {
		filename = evalFilename
		if opts.Ext != "" {
			filename = strings.TrimSuffix(evalFilename, filepath.Ext(evalFilename))
		}
	}
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(l.cwd, filename)
	}

	src := executor.EvalSource{Source: source, Filename: filename, Ext: opts.Ext}
	if opts.Async {
		return l.exec.EvalAsync(ctx, src).Wait(ctx)
	}
	return l.exec.Eval(ctx, src)
}

// Register installs the loader's require as the runtime's global require,
// with __jitImport for asynchronous loads. The returned func restores the
// previous globals; calling it more than once has no further effect.
func (l *Loader) Register() (func(), error) {
	if l.closed.Load() {
		return nil, domain.ErrLoaderClosed
	}

	names := []string{globalRequire, globalImport}
	saved := make(map[string]goja.Value, len(names))

	err := l.exec.Do(func(vm *goja.Runtime) error {
		global := vm.GlobalObject()
		for _, name := range names {
			saved[name] = global.Get(name)
		}

		requireFn := l.exec.NewRequire(l.cwd)
		if err := global.Set(globalRequire, requireFn); err != nil {
			return err
		}
		return global.Set(globalImport, requireFn.Get("import"))
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to register require")
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = l.exec.Do(func(vm *goja.Runtime) error {
				global := vm.GlobalObject()
				for _, name := range names {
					if prev := saved[name]; prev != nil {
						_ = global.Set(name, prev)
					} else {
						_ = global.Delete(name)
					}
				}
				return nil
			})
		})
	}, nil
}

// Do runs fn with exclusive access to the loader's runtime. Values returned
// by Require and Import must only be inspected inside Do while other
// goroutines may be loading.
func (l *Loader) Do(fn func(vm *goja.Runtime) error) error {
	if l.closed.Load() {
		return domain.ErrLoaderClosed
	}
	return l.exec.Do(fn)
}

// Invalidate drops the module at path so the next load executes it again.
func (l *Loader) Invalidate(path string) bool {
	return l.exec.Invalidate(path)
}

// InvalidateTree drops the modules at paths and every module that required
// them, returning the dropped paths.
func (l *Loader) InvalidateTree(paths ...string) []string {
	return l.exec.InvalidateTree(paths...)
}

// CacheDir returns the directory transform results are cached in, or "" when
// caching is off.
func (l *Loader) CacheDir() string {
	return l.store.Dir()
}

// Prune removes cache entries older than olderThan. Zero or less removes all.
func (l *Loader) Prune(ctx context.Context, olderThan time.Duration) (PruneReport, error) {
	return l.store.Prune(ctx, olderThan)
}

// Close drops every loaded module. The loader cannot be used afterwards.
func (l *Loader) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		l.registry.Close()
	}
	return nil
}
