package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"

	"github.com/dop251/goja"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	syncWrapper  = "(function (exports, require, module, __filename, __dirname) {"
	asyncWrapper = "(async function (exports, require, module, __filename, __dirname) {"
	wrapperEnd   = "\n})"

	sourceMapPrefix = "\n//# sourceMappingURL=data:application/json;base64,"
)

func (e *Executor) newRecord(path string, parent *domain.ModuleRecord) *domain.ModuleRecord {
	module := e.vm.NewObject()
	_ = module.Set("exports", e.vm.NewObject())
	_ = module.Set("id", path)
	_ = module.Set("filename", path)
	_ = module.Set("loaded", false)

	rec := &domain.ModuleRecord{
		ID:       path,
		Filename: path,
		Owner:    domain.OwnerEngine,
		Module:   module,
		Parent:   parent,
	}
	if parent != nil {
		parent.AddChild(rec)
	}
	return rec
}

func (e *Executor) markLoaded(rec *domain.ModuleRecord) {
	rec.Loaded = true
	_ = rec.Module.Set("loaded", true)
}

// runLocked compiles prep as a module function and calls it. For async
// modules the returned value is the promise of the module body.
func (e *Executor) runLocked(
	ctx context.Context, rec *domain.ModuleRecord, prep prepared, async bool,
) (goja.Value, error) {
	code := prep.code
	if e.opts.SourceMaps && prep.sourceMap != "" {
		code += sourceMapPrefix + base64.StdEncoding.EncodeToString([]byte(prep.sourceMap))
	}

	wrapper := syncWrapper
	if async {
		wrapper = asyncWrapper
	}

	prg, err := goja.Compile(rec.Filename, wrapper+code+wrapperEnd, false)
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrCompileFailed, err), "file", rec.Filename)
	}
	fnValue, err := e.vm.RunProgram(prg)
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrCompileFailed, err), "file", rec.Filename)
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, zerr.Wrap(domain.ErrCompileFailed, rec.Filename)
	}

	dir := filepath.Dir(rec.Filename)
	requireFn := e.requireFunc(ctx, dir, rec)
	_ = rec.Module.Set("require", requireFn)

	exports := rec.Module.Get("exports")
	ret, err := fn(exports, exports, requireFn, rec.Module, e.vm.ToValue(rec.Filename), e.vm.ToValue(dir))
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrExecutionFailed, err), "file", rec.Filename)
	}
	return ret, nil
}

// requireFunc builds the require function handed to modules in dir. Load
// errors are thrown into JS so modules can catch them.
func (e *Executor) requireFunc(ctx context.Context, dir string, parent *domain.ModuleRecord) *goja.Object {
	// Module code may call require long after the load that created it.
	ctx = context.WithoutCancel(ctx)

	requireFn := e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		specifier := call.Argument(0).String()
		v, err := e.requireLocked(ctx, specifier, dir, parent)
		if err != nil {
			e.throw(err)
		}
		return v
	}).ToObject(e.vm)

	_ = requireFn.Set("resolve", func(call goja.FunctionCall) goja.Value {
		specifier := call.Argument(0).String()
		mod, err := e.resolver.Resolve(specifier, dir)
		if err != nil {
			if isBuiltinCandidate(specifier, err) && e.native != nil {
				return e.vm.ToValue(specifier)
			}
			e.throw(err)
		}
		return e.vm.ToValue(mod.AbsolutePath)
	})

	_ = requireFn.Set("import", func(call goja.FunctionCall) goja.Value {
		specifier := call.Argument(0).String()
		promise, err := e.importLocked(ctx, specifier, dir, parent)
		if err != nil {
			e.throw(err)
		}
		return promise
	})

	return requireFn
}

// throw raises err in the running JS code. Interrupts stay uncatchable.
func (e *Executor) throw(err error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		panic(interrupted)
	}
	panic(e.vm.NewGoError(err))
}

func (e *Executor) loadJSONLocked(prep prepared, parent *domain.ModuleRecord) (goja.Value, error) {
	parse, ok := goja.AssertFunction(e.vm.Get("JSON").ToObject(e.vm).Get("parse"))
	if !ok {
		return nil, zerr.Wrap(domain.ErrExecutionFailed, prep.path)
	}
	v, err := parse(goja.Undefined(), e.vm.ToValue(prep.source))
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrExecutionFailed, err), "file", prep.path)
	}

	rec := e.newRecord(prep.path, parent)
	_ = rec.Module.Set("exports", v)
	e.markLoaded(rec)
	if e.opts.RequireCache {
		if err := e.registry.Insert(rec); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// loadNativeLocked hands id to the native loader. resolveErr is the
// resolution failure that made id a builtin candidate, if any.
func (e *Executor) loadNativeLocked(id string, parent *domain.ModuleRecord, resolveErr error) (goja.Value, error) {
	if rec, ok := e.registry.Get(id); ok && rec.Owner == domain.OwnerNative {
		if parent != nil {
			parent.AddChild(rec)
		}
		return rec.Exports(), nil
	}
	if e.native == nil {
		if resolveErr != nil {
			return nil, resolveErr
		}
		return nil, zerr.Wrap(domain.ErrNativeLoadFailed, id)
	}

	e.logger.Debug("loading natively", "module", id)
	v, err := e.native.Require(id)
	if err != nil {
		if resolveErr != nil {
			return nil, zerr.With(resolveErr, "native", err.Error())
		}
		return nil, err
	}

	rec := &domain.ModuleRecord{
		ID:       id,
		Filename: id,
		Owner:    domain.OwnerNative,
		Loaded:   true,
		Parent:   parent,
	}
	rec.SetExports(v)
	if parent != nil {
		parent.AddChild(rec)
	}
	if err := e.registry.Insert(rec); err != nil {
		return nil, err
	}
	return v, nil
}
