package executor_test

import (
	"path/filepath"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/jit/internal/core/ports/mocks"
	"go.trai.ch/jit/internal/engine/executor"
	"go.uber.org/mock/gomock"
)

func TestExecutor_TypeScriptModule(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.write(t, "src/util.ts", "export const x: number = 41\nexport function inc(n: number): number { return n + 1 }")
	e.write(t, "src/main.js", "const u = require('./util'); module.exports = { answer: u.inc(u.x) }")

	exports := e.require(t, "./src/main.js")
	assert.Equal(t, int64(42), exports.Get("answer").ToInteger())
	assert.Equal(t, int32(1), e.transformer.calls.Load(), "plain CommonJS is not transformed")
}

func TestExecutor_RegistryReuse(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	path := e.write(t, "util.ts", "globalThis.runs = (globalThis.runs || 0) + 1\nexport const v = 1")

	first := e.require(t, "./util")
	second := e.require(t, "./util")

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), e.global("runs").ToInteger())
	assert.Equal(t, int32(1), e.transformer.calls.Load())

	rec, ok := e.registry.Get(path)
	require.True(t, ok)
	assert.True(t, rec.Loaded)
	assert.Equal(t, domain.OwnerEngine, rec.Owner)
}

func TestExecutor_RequireCacheDisabled(t *testing.T) {
	t.Parallel()

	e := newEnv(t, func(s *setup) { s.opts.RequireCache = false })
	path := e.write(t, "count.js", "globalThis.runs = (globalThis.runs || 0) + 1; module.exports = {}")

	e.require(t, "./count")
	e.require(t, "./count")

	assert.Equal(t, int64(2), e.global("runs").ToInteger())
	_, ok := e.registry.Get(path)
	assert.False(t, ok)
}

func TestExecutor_Cycle(t *testing.T) {
	t.Parallel()

	for _, requireCache := range []bool{true, false} {
		e := newEnv(t, func(s *setup) { s.opts.RequireCache = requireCache })
		e.write(t, "a.js", `
exports.fromA = "a";
const b = require("./b");
exports.bSawA = b.sawA;
exports.bSawDone = b.sawDone;
exports.done = true;
`)
		e.write(t, "b.js", `
const a = require("./a");
exports.sawA = a.fromA;
exports.sawDone = a.done === true;
`)

		a := e.require(t, "./a")
		assert.Equal(t, "a", a.Get("bSawA").String())
		assert.False(t, a.Get("bSawDone").ToBoolean(), "b sees the in-progress exports of a")
		assert.True(t, a.Get("done").ToBoolean())
	}
}

func TestExecutor_CycleRecordsChildren(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	aPath := e.write(t, "a.js", `require("./b"); module.exports = 1`)
	bPath := e.write(t, "b.js", `require("./a"); module.exports = 2`)

	e.require(t, "./a")

	a, ok := e.registry.Get(aPath)
	require.True(t, ok)
	b, ok := e.registry.Get(bPath)
	require.True(t, ok)

	assert.Equal(t, []*domain.ModuleRecord{b}, a.Children)
	assert.Equal(t, []*domain.ModuleRecord{a}, b.Children)
	assert.Same(t, a, b.Parent)
}

func TestExecutor_ExecutionErrorRetries(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	path := e.write(t, "flaky.js", `throw new Error("boom")`)

	_, err := e.exec.Require(t.Context(), "./flaky", e.dir)
	require.ErrorIs(t, err, domain.ErrExecutionFailed)
	assert.ErrorContains(t, err, "boom")

	var exc *goja.Exception
	require.ErrorAs(t, err, &exc)

	_, ok := e.registry.Get(path)
	assert.False(t, ok, "a failed module is not left registered")

	e.write(t, "flaky.js", `module.exports = "fixed"`)
	v, err := e.exec.Require(t.Context(), "./flaky", e.dir)
	require.NoError(t, err)
	assert.Equal(t, "fixed", v.String())
}

func TestExecutor_TransformErrorNotExecuted(t *testing.T) {
	t.Parallel()

	failing := ports.TransformerFunc(func(domain.TransformOptions) domain.TransformResult {
		return domain.TransformResult{Error: "unexpected token"}
	})
	e := newEnv(t, func(s *setup) { s.transformer = failing })
	path := e.write(t, "bad.ts", "globalThis.ran = true; export const x = 1")

	_, err := e.exec.Require(t.Context(), "./bad", e.dir)
	require.ErrorIs(t, err, domain.ErrTransformFailed)
	assert.ErrorContains(t, err, "unexpected token")

	assert.True(t, goja.IsUndefined(e.global("ran")))
	_, ok := e.registry.Get(path)
	assert.False(t, ok)
}

func TestExecutor_NativeModuleSkipsTransformer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	transformer := mocks.NewMockTransformer(ctrl)
	transformer.EXPECT().Transform(gomock.Any(), gomock.Any()).Times(0)

	e := newEnv(t, func(s *setup) {
		s.transformer = transformer
		s.nativeModules = []string{"legacy"}
	})
	path := e.write(t, "node_modules/legacy/index.js", "module.exports = { kind: 'native' }")
	e.write(t, "node_modules/legacy/package.json", `{"main": "index.js"}`)

	exports := e.require(t, "legacy")
	assert.Equal(t, "native", exports.Get("kind").String())

	rec, ok := e.registry.Get(path)
	require.True(t, ok)
	assert.Equal(t, domain.OwnerNative, rec.Owner)
	assert.False(t, e.exec.Invalidate(path), "native records are never removed")
}

func TestExecutor_NativeRecordNotOverwritten(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	path := e.write(t, "shared.ts", "export const v = 'engine'")

	native := &domain.ModuleRecord{ID: path, Filename: path, Owner: domain.OwnerNative, Loaded: true}
	native.SetExports(e.vm.ToValue("native"))
	require.NoError(t, e.registry.Insert(native))

	v, err := e.exec.Require(t.Context(), "./shared", e.dir)
	require.NoError(t, err)
	assert.Equal(t, "native", v.String())
	assert.Equal(t, int32(0), e.transformer.calls.Load())
}

func TestExecutor_Builtins(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.write(t, "fmt.js", "module.exports = require('node:util').format('%s!', 'hi')")

	v, err := e.exec.Require(t.Context(), "./fmt", e.dir)
	require.NoError(t, err)
	assert.Equal(t, "hi!", v.String())
}

func TestExecutor_JSON(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.write(t, "data.json", `{"name": "jit", "list": [1, 2]}`)

	exports := e.require(t, "./data.json")
	assert.Equal(t, "jit", exports.Get("name").String())
	assert.Equal(t, int32(0), e.transformer.calls.Load())

	e.write(t, "broken.json", `{"name":`)
	_, err := e.exec.Require(t.Context(), "./broken.json", e.dir)
	require.ErrorIs(t, err, domain.ErrExecutionFailed)
}

func TestExecutor_NotFound(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	_, err := e.exec.Require(t.Context(), "./missing", e.dir)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.exec.Require(t.Context(), "no-such-package", e.dir)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecutor_NotFoundIsCatchable(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.write(t, "optional.js", `
let caught = "";
try { require("./missing") } catch (err) { caught = err.message }
module.exports = caught
`)

	v, err := e.exec.Require(t.Context(), "./optional", e.dir)
	require.NoError(t, err)
	assert.Contains(t, v.String(), "cannot find module")
}

func TestExecutor_NestedErrorKeepsCause(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.write(t, "outer.js", `require("./nope")`)

	_, err := e.exec.Require(t.Context(), "./outer", e.dir)
	require.ErrorIs(t, err, domain.ErrExecutionFailed)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecutor_RequireResolve(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	util := e.write(t, "lib/util.ts", "export {}")
	e.write(t, "lib/main.js", `module.exports = [require.resolve("./util"), require.resolve("node:util"), __filename, __dirname]`)

	v := e.require(t, "./lib/main.js")
	assert.Equal(t, util, v.Get("0").String())
	assert.Equal(t, "node:util", v.Get("1").String())
	assert.Equal(t, filepath.Join(e.dir, "lib", "main.js"), v.Get("2").String())
	assert.Equal(t, filepath.Join(e.dir, "lib"), v.Get("3").String())
}

func TestExecutor_Interop(t *testing.T) {
	t.Parallel()

	e := newEnv(t, func(s *setup) { s.opts.Interop = true })
	e.write(t, "greet.ts", "export default function greet(n: string) { return 'hi ' + n }\nexport const version = 2")

	v, err := e.exec.Require(t.Context(), "./greet", e.dir)
	require.NoError(t, err)

	fn, ok := goja.AssertFunction(v)
	require.True(t, ok)
	out, err := fn(goja.Undefined(), e.vm.ToValue("bob"))
	require.NoError(t, err)
	assert.Equal(t, "hi bob", out.String())
	assert.Equal(t, int64(2), v.ToObject(e.vm).Get("version").ToInteger())
}

func TestExecutor_SourceMaps(t *testing.T) {
	t.Parallel()

	e := newEnv(t, func(s *setup) { s.opts.SourceMaps = true })
	e.write(t, "mapped.ts", "type N = number\nconst n: N = 3\nexport default n")

	v := e.require(t, "./mapped")
	assert.Equal(t, int64(3), v.Get("default").ToInteger())
}

func TestExecutor_Eval(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	filename := filepath.Join(e.dir, "virtual.ts")

	v, err := e.exec.Eval(t.Context(), executor.EvalSource{
		Source:   "export const a: number = 1",
		Filename: filename,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToObject(e.vm).Get("a").ToInteger())
	assert.NoFileExists(t, filename)

	rec, ok := e.registry.Get(filename)
	require.True(t, ok)
	assert.True(t, rec.Loaded)
}

func TestExecutor_EvalExt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		ext      string
		wantErr  bool
	}{
		{name: "ext without dot", filename: "virtual", ext: "ts"},
		{name: "ext with dot", filename: "virtual", ext: ".ts"},
		{name: "filename extension wins", filename: "virtual.js", ext: ".ts", wantErr: true},
		{name: "no extension at all", filename: "virtual", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t)
			v, err := e.exec.Eval(t.Context(), executor.EvalSource{
				Source:   "const n: number = 4\nmodule.exports = n",
				Filename: filepath.Join(e.dir, tt.filename),
				Ext:      tt.ext,
			})
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrCompileFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(4), v.ToInteger())
		})
	}
}

func TestExecutor_LoadHonorsIsNative(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	native := mocks.NewMockNativeLoader(ctrl)

	e := newEnv(t, func(s *setup) {
		s.native = func(*goja.Runtime) ports.NativeLoader {
			return native
		}
	})
	path := e.write(t, "addon.ts", "export const x: number = 1")
	native.EXPECT().Require(path).Return(e.vm.ToValue("native"), nil).Times(1)

	v, err := e.exec.Load(t.Context(), domain.ResolvedModule{AbsolutePath: path, IsNative: true, Extension: ".ts"})
	require.NoError(t, err)
	assert.Equal(t, "native", v.String())
	assert.Equal(t, int32(0), e.transformer.calls.Load())
}

func TestExecutor_ResolveMarksNative(t *testing.T) {
	t.Parallel()

	e := newEnv(t, func(s *setup) { s.nativeModules = []string{"vendor"} })
	native := e.write(t, "node_modules/vendor/index.js", "module.exports = 1")
	plain := e.write(t, "lib.js", "module.exports = 2")

	mod, err := e.exec.Resolve(t.Context(), "vendor", e.dir)
	require.NoError(t, err)
	assert.Equal(t, native, mod.AbsolutePath)
	assert.True(t, mod.IsNative)

	mod, err = e.exec.Resolve(t.Context(), "./lib", e.dir)
	require.NoError(t, err)
	assert.Equal(t, plain, mod.AbsolutePath)
	assert.False(t, mod.IsNative)
}

func TestExecutor_Invalidate(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	path := e.write(t, "v.js", "module.exports = 1")
	v, err := e.exec.Require(t.Context(), "./v", e.dir)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInteger())

	e.write(t, "v.js", "module.exports = 2")
	assert.True(t, e.exec.Invalidate(path))

	v, err = e.exec.Require(t.Context(), "./v", e.dir)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.ToInteger())
}

func TestExecutor_InvalidateTree(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	dep := e.write(t, "dep.ts", "export const v: number = 1")
	main := e.write(t, "main.js", "module.exports = require('./dep').v")
	e.write(t, "other.js", "module.exports = 0")
	e.require(t, "./other")

	v, err := e.exec.Require(t.Context(), "./main", e.dir)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInteger())

	e.write(t, "dep.ts", "export const v: number = 2")
	assert.Equal(t, []string{dep, main}, e.exec.InvalidateTree(dep))

	v, err = e.exec.Require(t.Context(), "./main", e.dir)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.ToInteger())

	_, ok := e.registry.Get(filepath.Join(e.dir, "other.js"))
	assert.True(t, ok, "unrelated modules stay cached")
}

func TestExecutor_ClosedRegistry(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.write(t, "a.js", "module.exports = 1")
	e.registry.Close()

	_, err := e.exec.Require(t.Context(), "./a", e.dir)
	require.ErrorIs(t, err, domain.ErrRegistryClosed)
}

func TestExecutor_BuiltinFromNativeLoader(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	native := mocks.NewMockNativeLoader(ctrl)

	e := newEnv(t, func(s *setup) {
		s.native = func(vm *goja.Runtime) ports.NativeLoader {
			native.EXPECT().Require("host:clock").Return(vm.ToValue(1234), nil).Times(1)
			native.EXPECT().Require("host:missing").Return(nil, domain.ErrNativeLoadFailed)
			return native
		}
	})
	e.write(t, "main.js", "module.exports = require('host:clock') + require('host:clock')")

	v, err := e.exec.Require(t.Context(), "./main.js", e.dir)
	require.NoError(t, err)
	assert.Equal(t, int64(2468), v.ToInteger())

	rec, ok := e.registry.Get("host:clock")
	require.True(t, ok)
	assert.Equal(t, domain.OwnerNative, rec.Owner)

	_, err = e.exec.Require(t.Context(), "host:missing", e.dir)
	require.ErrorIs(t, err, domain.ErrNotFound, "the resolution failure is reported")
}
