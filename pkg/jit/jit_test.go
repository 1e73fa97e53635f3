package jit_test

import (
	"context"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/jit/internal/adapters/esbuild"
	"go.trai.ch/jit/internal/adapters/logger"
	"go.trai.ch/jit/pkg/jit"
)

type countingTransformer struct {
	inner jit.Transformer
	calls atomic.Int32
}

func (c *countingTransformer) Transform(ctx context.Context, opts jit.TransformOptions) (jit.TransformResult, error) {
	c.calls.Add(1)
	return c.inner.Transform(ctx, opts)
}

type project struct {
	dir      string
	cacheDir string
}

func newProject(t *testing.T, files map[string]string) project {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return project{dir: dir, cacheDir: t.TempDir()}
}

func (p project) options() jit.Options {
	opts := jit.DefaultOptions()
	opts.CacheDir = p.cacheDir
	return opts
}

func quiet() jit.Logger {
	l := logger.New()
	l.SetOutput(io.Discard)
	return l
}

func newLoader(t *testing.T, p project, opts jit.Options, extra ...jit.Option) *jit.Loader {
	t.Helper()

	options := append([]jit.Option{jit.WithCwd(p.dir), jit.WithLogger(quiet())}, extra...)
	l, err := jit.New(opts, options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func cacheFiles(t *testing.T, root string) []string {
	t.Helper()

	var files []string
	err := filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func get(t *testing.T, l *jit.Loader, v goja.Value, name string) goja.Value {
	t.Helper()

	var out goja.Value
	require.NoError(t, l.Do(func(vm *goja.Runtime) error {
		out = v.ToObject(vm).Get(name)
		return nil
	}))
	return out
}

func TestLoader_RequireTypeScriptUsesCache(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"util.ts": "export const x: number = 1",
	})

	first := &countingTransformer{inner: esbuild.NewTransformer()}
	l := newLoader(t, p, p.options(), jit.WithTransformer(first))

	v, err := l.Require(t.Context(), "./util")
	require.NoError(t, err)
	assert.Equal(t, int64(1), get(t, l, v, "x").ToInteger())
	assert.Equal(t, int32(1), first.calls.Load())
	assert.Len(t, cacheFiles(t, l.CacheDir()), 1)

	second := &countingTransformer{inner: esbuild.NewTransformer()}
	fresh := newLoader(t, p, p.options(), jit.WithTransformer(second))

	v, err = fresh.Require(t.Context(), "./util")
	require.NoError(t, err)
	assert.Equal(t, int64(1), get(t, fresh, v, "x").ToInteger())
	assert.Equal(t, int32(0), second.calls.Load(), "a new loader reads the cached result")
}

func TestLoader_CacheDisabled(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"util.ts":            "export const x: number = 2",
		"node_modules/.keep": "",
	})

	opts := jit.DefaultOptions()
	opts.Cache = false
	l := newLoader(t, p, opts)

	v, err := l.Require(t.Context(), "./util")
	require.NoError(t, err)
	assert.Equal(t, int64(2), get(t, l, v, "x").ToInteger())

	assert.Empty(t, l.CacheDir())
	assert.NoDirExists(t, filepath.Join(p.dir, "node_modules", ".cache"))
}

func TestLoader_ProjectCacheDir(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{"node_modules/.keep": ""})

	l := newLoader(t, p, jit.DefaultOptions())
	assert.Equal(t, filepath.Join(p.dir, "node_modules", ".cache", "jit", "v1"), l.CacheDir())
}

func TestLoader_FailingTransformer(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{"bad.ts": "export const = ;"})
	failing := jit.TransformerFunc(func(jit.TransformOptions) jit.TransformResult {
		return jit.TransformResult{Error: "Unexpected \"=\""}
	})
	l := newLoader(t, p, p.options(), jit.WithTransformer(failing))

	_, err := l.Require(t.Context(), "./bad")
	require.ErrorIs(t, err, jit.ErrTransformFailed)
	assert.ErrorContains(t, err, "Unexpected")
	assert.Empty(t, cacheFiles(t, l.CacheDir()))
}

func TestLoader_NotFound(t *testing.T) {
	t.Parallel()

	p := newProject(t, nil)
	l := newLoader(t, p, p.options())

	_, err := l.Require(t.Context(), "./nope")
	require.ErrorIs(t, err, jit.ErrNotFound)
}

func TestLoader_Transform(t *testing.T) {
	t.Parallel()

	p := newProject(t, nil)
	opts := p.options()
	opts.TransformOptions = jit.Extras{"target": "es2015"}
	l := newLoader(t, p, opts)

	code, err := l.Transform(t.Context(), jit.TransformOptions{
		Source:   "export const f = (a: number) => a ** 2",
		Filename: filepath.Join(p.dir, "f.ts"),
	})
	require.NoError(t, err)
	assert.NotContains(t, code, ": number")
	assert.NotContains(t, code, "**", "the default target is applied")
	assert.Contains(t, code, "Math.pow")

	again, err := l.Transform(t.Context(), jit.TransformOptions{
		Source:   "export const f = (a: number) => a ** 2",
		Filename: filepath.Join(p.dir, "f.ts"),
	})
	require.NoError(t, err)
	assert.Equal(t, code, again)
}

func TestLoader_Import(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"later.js": "module.exports = { v: await Promise.resolve(9) }",
	})
	l := newLoader(t, p, p.options())

	v, err := l.Import(t.Context(), "./later.js").Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(9), get(t, l, v, "v").ToInteger())
}

func TestLoader_EvalModule(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"dep.ts": "export const base: number = 40",
	})
	l := newLoader(t, p, p.options())

	v, err := l.EvalModule(t.Context(), "import { base } from './dep'\nexport default base + 2", jit.EvalOptions{
		Filename: "virtual.ts",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), get(t, l, v, "default").ToInteger())

	v, err = l.EvalModule(t.Context(), "module.exports = __filename", jit.EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.dir, "eval.js"), v.String())
}

func TestLoader_EvalModuleExtAndAsync(t *testing.T) {
	t.Parallel()

	p := newProject(t, nil)
	l := newLoader(t, p, p.options())

	v, err := l.EvalModule(t.Context(), "const n: number = 5\nmodule.exports = __filename + ':' + n", jit.EvalOptions{
		Ext: "ts",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.dir, "eval")+":5", v.String())

	_, err = l.EvalModule(t.Context(), "module.exports = await Promise.resolve(1)", jit.EvalOptions{
		Filename: "sync.js",
	})
	require.ErrorIs(t, err, jit.ErrCompileFailed)

	v, err = l.EvalModule(t.Context(), "module.exports = { v: await Promise.resolve(1) }", jit.EvalOptions{
		Filename: "later.js",
		Async:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), get(t, l, v, "v").ToInteger())
}

func TestLoader_Resolve(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"src/index.ts": "export {}",
	})
	l := newLoader(t, p, p.options())

	path, err := l.Resolve(t.Context(), "./src")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.dir, "src", "index.ts"), path)

	_, err = l.Resolve(t.Context(), "./nope")
	require.ErrorIs(t, err, jit.ErrNotFound)
}

func TestLoader_Register(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"util.ts": "export const x: number = 3",
	})
	l := newLoader(t, p, p.options())

	var before goja.Value
	require.NoError(t, l.Do(func(vm *goja.Runtime) error {
		before = vm.Get("require")
		return nil
	}))

	unregister, err := l.Register()
	require.NoError(t, err)

	require.NoError(t, l.Do(func(vm *goja.Runtime) error {
		v, err := vm.RunString(`require("./util").x + (typeof __jitImport === "function" ? 1 : 0)`)
		require.NoError(t, err)
		assert.Equal(t, int64(4), v.ToInteger())
		return nil
	}))

	unregister()
	unregister()

	require.NoError(t, l.Do(func(vm *goja.Runtime) error {
		assert.Same(t, before, vm.Get("require"))
		assert.Nil(t, vm.Get("__jitImport"))
		return nil
	}))
}

func TestLoader_InvalidateAndPrune(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{
		"v.ts": "export const v = 1",
	})
	l := newLoader(t, p, p.options())

	_, err := l.Require(t.Context(), "./v")
	require.NoError(t, err)

	path := filepath.Join(p.dir, "v.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const v = 2"), 0o600))
	assert.True(t, l.Invalidate(path))

	v, err := l.Require(t.Context(), "./v")
	require.NoError(t, err)
	assert.Equal(t, int64(2), get(t, l, v, "v").ToInteger())

	report, err := l.Prune(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Removed)
	assert.Empty(t, cacheFiles(t, l.CacheDir()))
}

func TestLoader_Close(t *testing.T) {
	t.Parallel()

	p := newProject(t, map[string]string{"a.js": "module.exports = 1"})
	l := newLoader(t, p, p.options())

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, err := l.Require(t.Context(), "./a")
	require.ErrorIs(t, err, jit.ErrLoaderClosed)
	_, err = l.Import(t.Context(), "./a").Wait(t.Context())
	require.ErrorIs(t, err, jit.ErrLoaderClosed)
	_, err = l.Register()
	require.ErrorIs(t, err, jit.ErrLoaderClosed)
}

func TestEngineVersion(t *testing.T) {
	t.Parallel()

	opts := jit.DefaultOptions()
	base := jit.EngineVersion(opts)
	assert.True(t, strings.HasSuffix(base, "/v1"))

	opts.CacheVersion = "v2"
	assert.NotEqual(t, base, jit.EngineVersion(opts))
}
