package esbuild

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/jit/internal/core/ports"
)

// NodeID is the unique identifier for the default transformer Graft node.
const NodeID graft.ID = "adapter.esbuild.transformer"

func init() {
	graft.Register(graft.Node[ports.Transformer]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Transformer, error) {
			return NewTransformer(), nil
		},
	})
}
