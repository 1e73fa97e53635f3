// Package executor compiles transformed code into module records and runs it
// on a goja runtime.
package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/jit/internal/engine/pipeline"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// Options are the execution settings taken from domain.LoaderOptions.
type Options struct {
	RequireCache  bool
	SourceMaps    bool
	Interop       bool
	EngineVersion string
	Extra         domain.Extras
}

// Deps are the collaborators of an Executor.
type Deps struct {
	Registry    *domain.Registry
	Resolver    ports.PathResolver
	Policy      ports.PolicyMatcher
	Transformer ports.Transformer
	Native      ports.NativeLoader
	Tracer      ports.Tracer
	Logger      ports.Logger
}

// Executor loads modules into one goja runtime. All runtime access goes
// through its mutex; the runtime is never used by two goroutines at once.
type Executor struct {
	mu          sync.Mutex
	vm          *goja.Runtime
	registry    *domain.Registry
	resolver    ports.PathResolver
	policy      ports.PolicyMatcher
	transformer ports.Transformer
	native      ports.NativeLoader
	tracer      ports.Tracer
	logger      ports.Logger
	opts        Options
	inflight    singleflight.Group

	// executing holds async module bodies that have started but not settled.
	// They are not in the registry yet; require cycles find them here.
	executing map[string]*domain.ModuleRecord
}

// New creates an Executor for vm.
func New(vm *goja.Runtime, deps Deps, opts Options) *Executor {
	return &Executor{
		vm:          vm,
		registry:    deps.Registry,
		resolver:    deps.Resolver,
		policy:      deps.Policy,
		transformer: deps.Transformer,
		native:      deps.Native,
		tracer:      deps.Tracer,
		logger:      deps.Logger,
		opts:        opts,
		executing:   make(map[string]*domain.ModuleRecord),
	}
}

// Require resolves specifier from fromDir and loads it synchronously.
func (e *Executor) Require(ctx context.Context, specifier, fromDir string) (goja.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requireLocked(ctx, specifier, fromDir, nil)
}

// Load loads an already resolved module synchronously. Modules marked
// IsNative go to the native loader whatever the policy says.
func (e *Executor) Load(ctx context.Context, mod domain.ResolvedModule) (goja.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadLocked(ctx, mod, nil)
}

// Resolve maps specifier to a file the way require does from fromDir.
func (e *Executor) Resolve(ctx context.Context, specifier, fromDir string) (domain.ResolvedModule, error) {
	return e.resolve(ctx, specifier, fromDir)
}

// EvalSource is a module evaluated from memory.
type EvalSource struct {
	Source   string
	Filename string
	// Ext selects the syntax when Filename has no extension.
	Ext string
}

func (src EvalSource) ext() string {
	if ext := filepath.Ext(src.Filename); ext != "" || src.Ext == "" {
		return ext
	}
	if strings.HasPrefix(src.Ext, ".") {
		return src.Ext
	}
	return "." + src.Ext
}

// Eval runs src as the module src.Filename, transforming it when its syntax
// requires. The file itself is never read.
func (e *Executor) Eval(ctx context.Context, src EvalSource) (goja.Value, error) {
	prep, err := e.prepareEval(ctx, src, false)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executeLocked(ctx, prep, nil)
}

// EvalAsync runs src as an async module body, so it may use top-level await.
func (e *Executor) EvalAsync(ctx context.Context, src EvalSource) *Pending {
	p := newPending()
	go func() {
		p.settle(e.evalAsync(ctx, src))
	}()
	return p
}

func (e *Executor) evalAsync(ctx context.Context, src EvalSource) (goja.Value, error) {
	prep, err := e.prepareEval(ctx, src, true)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release := e.watchInterrupt(ctx)
	defer release()

	promise, err := e.startAsyncLocked(ctx, prep, nil)
	if err != nil {
		return nil, e.interrupted(ctx, err)
	}
	return e.settledLocked(ctx, prep.path, promise)
}

func (e *Executor) prepareEval(ctx context.Context, src EvalSource, async bool) (prepared, error) {
	filename := filepath.Clean(src.Filename)
	class := e.policy.Classify(filename)
	if class == domain.ClassNative {
		class = domain.ClassDefault
	}
	return e.prepareSource(ctx, filename, src.ext(), src.Source, class, async)
}

// Invalidate drops the engine record for path so the next load re-executes it.
func (e *Executor) Invalidate(path string) bool {
	return e.registry.Delete(path)
}

// InvalidateTree drops the engine records for paths and for every module that
// required one of them, returning the dropped ids.
func (e *Executor) InvalidateTree(paths ...string) []string {
	return e.registry.DeleteWithDependents(paths...)
}

// Do runs fn with exclusive access to the runtime.
func (e *Executor) Do(fn func(vm *goja.Runtime) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.vm)
}

// NewRequire returns a JS require function resolving relative to dir. It
// must be called from within Do, and the returned function only from JS
// running on this executor's runtime.
func (e *Executor) NewRequire(dir string) *goja.Object {
	return e.requireFunc(context.Background(), dir, nil)
}

func (e *Executor) requireLocked(
	ctx context.Context, specifier, fromDir string, parent *domain.ModuleRecord,
) (goja.Value, error) {
	mod, err := e.resolve(ctx, specifier, fromDir)
	if err != nil {
		if isBuiltinCandidate(specifier, err) {
			return e.loadNativeLocked(specifier, parent, err)
		}
		return nil, err
	}
	return e.loadLocked(ctx, mod, parent)
}

func (e *Executor) resolve(ctx context.Context, specifier, fromDir string) (domain.ResolvedModule, error) {
	_, span := e.tracer.Start(ctx, "jit.resolve")
	defer span.End()
	span.SetAttribute("specifier", specifier)

	mod, err := e.resolver.Resolve(specifier, fromDir)
	if err != nil {
		span.RecordError(err)
		return mod, err
	}
	mod.IsNative = e.policy.Classify(mod.AbsolutePath) == domain.ClassNative
	span.SetAttribute("file", mod.AbsolutePath)
	return mod, nil
}

// classify returns the policy for mod, trusting an IsNative mark.
func (e *Executor) classify(mod domain.ResolvedModule) domain.Classification {
	if mod.IsNative {
		return domain.ClassNative
	}
	return e.policy.Classify(mod.AbsolutePath)
}

func (e *Executor) loadLocked(ctx context.Context, mod domain.ResolvedModule, parent *domain.ModuleRecord) (goja.Value, error) {
	path := mod.AbsolutePath
	if v, ok := e.cachedLocked(path, parent); ok {
		return v, nil
	}

	class := e.classify(mod)
	if class == domain.ClassNative {
		return e.loadNativeLocked(path, parent, nil)
	}

	prep, err := e.prepareFile(ctx, path, class, false)
	if err != nil {
		return nil, err
	}
	return e.executeLocked(ctx, prep, parent)
}

// cachedLocked returns the registered exports for path, or the partial
// exports of an async body still running. Records still executing are
// returned regardless of RequireCache, which is what breaks require cycles.
func (e *Executor) cachedLocked(path string, parent *domain.ModuleRecord) (goja.Value, bool) {
	rec, ok := e.registry.Get(path)
	if !ok {
		if rec, ok = e.executing[path]; !ok {
			return nil, false
		}
	}
	if rec.Owner != domain.OwnerNative && rec.Loaded && !e.opts.RequireCache {
		return nil, false
	}
	if parent != nil {
		parent.AddChild(rec)
	}
	return rec.Exports(), true
}

// prepared is a module whose code is ready to run.
type prepared struct {
	path      string
	source    string
	code      string
	sourceMap string
	json      bool
}

func (e *Executor) prepareFile(
	ctx context.Context, path string, class domain.Classification, async bool,
) (prepared, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from the resolver
	if err != nil {
		return prepared{}, zerr.With(errors.Join(domain.ErrSourceReadFailed, err), "file", path)
	}
	return e.prepareSource(ctx, path, filepath.Ext(path), string(data), class, async)
}

// prepareSource transforms source when needed. ext decides the syntax and
// need not match path.
func (e *Executor) prepareSource(
	ctx context.Context, path, ext, source string, class domain.Classification, async bool,
) (prepared, error) {
	prep := prepared{path: path, source: source, code: source}
	if strings.EqualFold(ext, ".json") {
		prep.json = true
		return prep, nil
	}
	if !pipeline.NeedsTransform(ext, source, class) {
		return prep, nil
	}

	ts, jsx := pipeline.SyntaxFlags(ext)
	res, err := e.transformer.Transform(ctx, domain.TransformOptions{
		Source:        source,
		Filename:      path,
		TS:            ts,
		JSX:           jsx,
		Async:         async,
		SourceMaps:    e.opts.SourceMaps,
		Interop:       e.opts.Interop,
		EngineVersion: e.opts.EngineVersion,
		Extra:         e.opts.Extra,
	})
	if err != nil {
		return prepared{}, err
	}
	prep.code = res.Code
	prep.sourceMap = res.SourceMap
	return prep, nil
}

// executeLocked registers and runs a prepared module synchronously.
func (e *Executor) executeLocked(ctx context.Context, prep prepared, parent *domain.ModuleRecord) (goja.Value, error) {
	ctx, span := e.tracer.Start(ctx, "jit.execute")
	defer span.End()
	span.SetAttribute("file", prep.path)

	if prep.json {
		v, err := e.loadJSONLocked(prep, parent)
		if err != nil {
			span.RecordError(err)
		}
		return v, err
	}

	rec := e.newRecord(prep.path, parent)
	if err := e.registry.Insert(rec); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if _, err := e.runLocked(ctx, rec, prep, false); err != nil {
		e.registry.DeleteIf(rec)
		span.RecordError(err)
		return nil, err
	}

	e.markLoaded(rec)
	if !e.opts.RequireCache {
		e.registry.DeleteIf(rec)
	}
	return rec.Exports(), nil
}

// isBuiltinCandidate reports whether a failed resolution should be retried
// as a builtin module of the native loader.
func isBuiltinCandidate(specifier string, err error) bool {
	if !errors.Is(err, domain.ErrNotFound) {
		return false
	}
	if strings.HasPrefix(specifier, "node:") {
		return true
	}
	return !strings.HasPrefix(specifier, ".") && !filepath.IsAbs(specifier) &&
		!strings.HasPrefix(specifier, "file://")
}
