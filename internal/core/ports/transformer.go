package ports

import (
	"context"

	"go.trai.ch/jit/internal/core/domain"
)

// Transformer turns source text into code the runtime can execute.
//
//go:generate go run go.uber.org/mock/mockgen -source=transformer.go -destination=mocks/mock_transformer.go -package=mocks
type Transformer interface {
	// Transform converts opts.Source. A result with a non-empty Error is a failure.
	Transform(ctx context.Context, opts domain.TransformOptions) (domain.TransformResult, error)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(opts domain.TransformOptions) domain.TransformResult

// Transform calls f(opts).
func (f TransformerFunc) Transform(_ context.Context, opts domain.TransformOptions) (domain.TransformResult, error) {
	return f(opts), nil
}
