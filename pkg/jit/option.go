package jit

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"go.trai.ch/jit/internal/core/ports"
)

// Option customizes the collaborators of a Loader.
type Option func(*settings)

type settings struct {
	cwd            string
	vm             *goja.Runtime
	transformer    ports.Transformer
	logger         ports.Logger
	tracer         ports.Tracer
	requireOptions []require.Option
}

// WithCwd sets the directory top-level specifiers are resolved from and the
// project-local cache is looked up in. It defaults to the working directory.
func WithCwd(dir string) Option {
	return func(s *settings) {
		s.cwd = dir
	}
}

// WithRuntime loads modules into vm instead of a new runtime. The loader
// must be the only user of vm.
func WithRuntime(vm *goja.Runtime) Option {
	return func(s *settings) {
		s.vm = vm
	}
}

// WithTransformer replaces the esbuild transformer.
func WithTransformer(t Transformer) Option {
	return func(s *settings) {
		s.transformer = t
	}
}

// WithLogger replaces the default stderr logger.
func WithLogger(l Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithTracer sets the tracer. Tracing is off by default.
func WithTracer(t Tracer) Option {
	return func(s *settings) {
		s.tracer = t
	}
}

// WithNativeRequireOptions configures the goja_nodejs registry used for
// native and builtin modules.
func WithNativeRequireOptions(opts ...require.Option) Option {
	return func(s *settings) {
		s.requireOptions = append(s.requireOptions, opts...)
	}
}
