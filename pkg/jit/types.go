package jit

import (
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/jit/internal/engine/executor"
)

type (
	// Options configures a Loader. It is copied when the Loader is created.
	Options = domain.LoaderOptions
	// Extras are transformer options passed through to the transformer.
	Extras = domain.Extras
	// TransformOptions describes a single transformation.
	TransformOptions = domain.TransformOptions
	// TransformResult is what a Transformer returns.
	TransformResult = domain.TransformResult
	// Transformer converts source code to CommonJS.
	Transformer = ports.Transformer
	// TransformerFunc adapts a plain function to Transformer.
	TransformerFunc = ports.TransformerFunc
	// Logger receives the loader's diagnostics.
	Logger = ports.Logger
	// Tracer opens spans around resolution, transformation and execution.
	Tracer = ports.Tracer
	// Pending is the result of an asynchronous import.
	Pending = executor.Pending
	// PruneReport summarizes a cache prune.
	PruneReport = domain.PruneReport
)

// Errors returned by the loader. Test for them with errors.Is.
var (
	ErrNotFound         = domain.ErrNotFound
	ErrTransformFailed  = domain.ErrTransformFailed
	ErrCompileFailed    = domain.ErrCompileFailed
	ErrExecutionFailed  = domain.ErrExecutionFailed
	ErrModuleNotSettled = domain.ErrModuleNotSettled
	ErrLoaderClosed     = domain.ErrLoaderClosed
)

// DefaultOptions returns the default loader options.
func DefaultOptions() Options {
	return domain.DefaultLoaderOptions()
}
