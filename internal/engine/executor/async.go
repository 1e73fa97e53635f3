package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/dop251/goja"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/zerr"
)

// Pending is the result of an asynchronous load.
type Pending struct {
	done  chan struct{}
	value goja.Value
	err   error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) settle(v goja.Value, err error) {
	p.value, p.err = v, err
	close(p.done)
}

// Failed returns a Pending already settled with err.
func Failed(err error) *Pending {
	p := newPending()
	p.settle(nil, err)
	return p
}

// Done is closed once the load has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the load settles or ctx is done. The value belongs to
// the executor's runtime and must only be used through Executor.Do.
func (p *Pending) Wait(ctx context.Context) (goja.Value, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Import resolves specifier from fromDir and loads it asynchronously.
func (e *Executor) Import(ctx context.Context, specifier, fromDir string) *Pending {
	mod, err := e.resolve(ctx, specifier, fromDir)
	if err != nil {
		if isBuiltinCandidate(specifier, err) {
			p := newPending()
			go func() {
				e.mu.Lock()
				defer e.mu.Unlock()
				p.settle(e.loadNativeLocked(specifier, nil, err))
			}()
			return p
		}
		return Failed(err)
	}
	return e.LoadAsync(ctx, mod)
}

// LoadAsync loads mod on its own goroutine. The source is read and
// transformed before the runtime is locked, and concurrent loads of the same
// path share one execution. The record is registered only after the module
// body has completed; cancelling ctx interrupts the body and registers nothing.
func (e *Executor) LoadAsync(ctx context.Context, mod domain.ResolvedModule) *Pending {
	p := newPending()
	go func() {
		v, err, _ := e.inflight.Do(mod.AbsolutePath, func() (any, error) {
			return e.loadAsync(ctx, mod)
		})
		value, _ := v.(goja.Value)
		p.settle(value, err)
	}()
	return p
}

func (e *Executor) loadAsync(ctx context.Context, mod domain.ResolvedModule) (goja.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := mod.AbsolutePath
	class := e.classify(mod)
	var prep prepared
	if _, registered := e.registry.Get(path); !registered && class != domain.ClassNative {
		var err error
		if prep, err = e.prepareFile(ctx, path, class, true); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release := e.watchInterrupt(ctx)
	defer release()

	if v, ok := e.cachedLocked(path, nil); ok {
		return v, nil
	}
	if class == domain.ClassNative {
		return e.loadNativeLocked(path, nil, nil)
	}
	if prep.path == "" {
		// Registered when checked, dropped since.
		var err error
		if prep, err = e.prepareFile(ctx, path, class, true); err != nil {
			return nil, err
		}
	}

	promise, err := e.startAsyncLocked(ctx, prep, nil)
	if err != nil {
		return nil, e.interrupted(ctx, err)
	}
	return e.settledLocked(ctx, path, promise)
}

// importLocked is the in-runtime import used by require.import and the
// global import hook. It returns a promise for the module's exports.
func (e *Executor) importLocked(
	ctx context.Context, specifier, fromDir string, parent *domain.ModuleRecord,
) (goja.Value, error) {
	mod, err := e.resolve(ctx, specifier, fromDir)
	if err != nil {
		if !isBuiltinCandidate(specifier, err) {
			return nil, err
		}
		v, err := e.loadNativeLocked(specifier, parent, err)
		if err != nil {
			return nil, err
		}
		return e.resolvedPromise(v), nil
	}

	path := mod.AbsolutePath
	if v, ok := e.cachedLocked(path, parent); ok {
		return e.resolvedPromise(v), nil
	}
	class := e.classify(mod)
	if class == domain.ClassNative {
		v, err := e.loadNativeLocked(path, parent, nil)
		if err != nil {
			return nil, err
		}
		return e.resolvedPromise(v), nil
	}

	prep, err := e.prepareFile(ctx, path, class, true)
	if err != nil {
		return nil, err
	}
	return e.startAsyncLocked(ctx, prep, parent)
}

// startAsyncLocked runs prep as an async module body and returns the promise
// of its exports. While the body runs, the record is only visible to require
// cycles through e.executing; it is registered when the body fulfills.
func (e *Executor) startAsyncLocked(ctx context.Context, prep prepared, parent *domain.ModuleRecord) (goja.Value, error) {
	ctx, span := e.tracer.Start(ctx, "jit.execute")
	defer span.End()
	span.SetAttribute("file", prep.path)
	span.SetAttribute("async", true)

	if prep.json {
		v, err := e.loadJSONLocked(prep, parent)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		return e.resolvedPromise(v), nil
	}

	rec := e.newRecord(prep.path, parent)
	e.executing[prep.path] = rec
	body, err := e.runLocked(ctx, rec, prep, true)
	if err != nil {
		e.forgetLocked(rec)
		span.RecordError(err)
		return nil, err
	}

	then, ok := goja.AssertFunction(body.ToObject(e.vm).Get("then"))
	if !ok {
		e.forgetLocked(rec)
		return nil, zerr.Wrap(domain.ErrExecutionFailed, prep.path)
	}
	onRejected := e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		e.forgetLocked(rec)
		panic(call.Argument(0))
	})
	onFulfilled := e.vm.ToValue(func(goja.FunctionCall) goja.Value {
		e.forgetLocked(rec)
		e.markLoaded(rec)
		if e.opts.RequireCache {
			if err := e.registry.Insert(rec); err != nil {
				e.throw(err)
			}
		}
		return rec.Exports()
	})
	return then(body, onFulfilled, onRejected)
}

// forgetLocked drops rec from the running async bodies.
func (e *Executor) forgetLocked(rec *domain.ModuleRecord) {
	if e.executing[rec.ID] == rec {
		delete(e.executing, rec.ID)
	}
}

// settledLocked inspects a module promise after the job queue has drained.
func (e *Executor) settledLocked(ctx context.Context, path string, promiseValue goja.Value) (goja.Value, error) {
	promise, ok := promiseValue.Export().(*goja.Promise)
	if !ok {
		return promiseValue, nil
	}

	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result(), nil
	case goja.PromiseStateRejected:
		err := errors.Join(domain.ErrExecutionFailed, e.rejection(promise.Result()))
		return nil, e.interrupted(ctx, zerr.With(err, "file", path))
	default:
		// Unsettled bodies stay out of later requires.
		delete(e.executing, path)
		return nil, zerr.Wrap(domain.ErrModuleNotSettled, path)
	}
}

// rejection converts a rejection reason to an error, unwrapping Go errors
// thrown from host functions.
func (e *Executor) rejection(reason goja.Value) error {
	if obj, ok := reason.(*goja.Object); ok {
		if inner := obj.Get("value"); inner != nil {
			if err, ok := inner.Export().(error); ok {
				return err
			}
		}
		if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
			return errors.New(stack.String())
		}
	}
	return errors.New(reason.String())
}

func (e *Executor) resolvedPromise(v goja.Value) goja.Value {
	promise, resolve, _ := e.vm.NewPromise()
	_ = resolve(v)
	return e.vm.ToValue(promise)
}

// interrupted attaches the cancellation cause when err stems from ctx.
func (e *Executor) interrupted(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return errors.Join(ctxErr, err)
	}
	return err
}

// watchInterrupt interrupts the runtime when ctx is done. The returned
// release func must be called before the runtime is used again.
func (e *Executor) watchInterrupt(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-stop:
		}
	})

	return func() {
		close(stop)
		wg.Wait()
		e.vm.ClearInterrupt()
	}
}
