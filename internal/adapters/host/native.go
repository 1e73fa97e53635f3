// Package host adapts the goja_nodejs CommonJS loader as the engine's native loader.
package host

import (
	"errors"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.NativeLoader = (*NativeLoader)(nil)

// NativeLoader loads modules with goja_nodejs, untouched by the transform pipeline.
type NativeLoader struct {
	module *require.RequireModule
}

// NewNativeLoader enables the goja_nodejs require registry and the console
// global on vm. The registry keeps its own module cache.
func NewNativeLoader(vm *goja.Runtime, opts ...require.Option) *NativeLoader {
	module := require.NewRegistry(opts...).Enable(vm)
	console.Enable(vm)
	return &NativeLoader{module: module}
}

// Require loads an absolute path or a builtin module name.
func (l *NativeLoader) Require(path string) (goja.Value, error) {
	v, err := l.module.Require(strings.TrimPrefix(path, "node:"))
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrNativeLoadFailed, err), "path", path)
	}
	return v, nil
}
