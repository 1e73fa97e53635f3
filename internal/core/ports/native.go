package ports

import "github.com/dop251/goja"

// NativeLoader is the host runtime's own CommonJS loader, used for modules
// that are excluded from transformation.
//
//go:generate go run go.uber.org/mock/mockgen -source=native.go -destination=mocks/mock_native.go -package=mocks
type NativeLoader interface {
	// Require loads the module at the absolute path and returns its exports.
	Require(path string) (goja.Value, error)
}
