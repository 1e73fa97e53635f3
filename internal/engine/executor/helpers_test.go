package executor_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"
	"go.trai.ch/jit/internal/adapters/cas"
	"go.trai.ch/jit/internal/adapters/esbuild"
	"go.trai.ch/jit/internal/adapters/fs"
	"go.trai.ch/jit/internal/adapters/host"
	"go.trai.ch/jit/internal/adapters/policy"
	"go.trai.ch/jit/internal/adapters/telemetry"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/jit/internal/core/ports/mocks"
	"go.trai.ch/jit/internal/engine/executor"
	"go.trai.ch/jit/internal/engine/pipeline"
	"go.uber.org/mock/gomock"
)

type countingTransformer struct {
	inner ports.Transformer
	calls atomic.Int32
}

func (c *countingTransformer) Transform(ctx context.Context, opts domain.TransformOptions) (domain.TransformResult, error) {
	c.calls.Add(1)
	return c.inner.Transform(ctx, opts)
}

type setup struct {
	native        func(vm *goja.Runtime) ports.NativeLoader
	transformer   ports.Transformer
	nativeModules []string
	opts          executor.Options
}

type env struct {
	dir         string
	vm          *goja.Runtime
	registry    *domain.Registry
	exec        *executor.Executor
	transformer *countingTransformer
}

func newEnv(t *testing.T, configure ...func(*setup)) *env {
	t.Helper()

	s := &setup{
		transformer: esbuild.NewTransformer(),
		opts:        executor.Options{RequireCache: true, EngineVersion: "test/v1"},
		native: func(vm *goja.Runtime) ports.NativeLoader {
			return host.NewNativeLoader(vm)
		},
	}
	for _, c := range configure {
		c(s)
	}

	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()

	// Resolve symlinks so paths match what the resolver reports.
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	counting := &countingTransformer{inner: s.transformer}
	tracer := telemetry.NewNoOpTracer()
	vm := goja.New()
	registry := domain.NewRegistry()

	exec := executor.New(vm, executor.Deps{
		Registry: registry,
		Resolver: fs.NewResolver(domain.DefaultExtensions, nil),
		Policy:   policy.NewMatcher(s.nativeModules, nil),
		Transformer: pipeline.New(
			fs.NewHasher(), cas.NewStore(filepath.Join(dir, ".cache"), logger),
			counting, tracer, logger,
		),
		Native: s.native(vm),
		Tracer: tracer,
		Logger: logger,
	}, s.opts)

	return &env{dir: dir, vm: vm, registry: registry, exec: exec, transformer: counting}
}

func (e *env) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (e *env) require(t *testing.T, specifier string) *goja.Object {
	t.Helper()
	v, err := e.exec.Require(t.Context(), specifier, e.dir)
	require.NoError(t, err)
	return v.ToObject(e.vm)
}

func (e *env) global(name string) goja.Value {
	var v goja.Value
	_ = e.exec.Do(func(vm *goja.Runtime) error {
		v = vm.Get(name)
		return nil
	})
	return v
}
