package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/jit/internal/core/ports"
)

const (
	// WalkerNodeID is the unique identifier for the file walker Graft node.
	WalkerNodeID graft.ID = "adapter.fs.walker"
	// HasherNodeID is the unique identifier for the fingerprinter Graft node.
	HasherNodeID graft.ID = "adapter.fs.hasher"
)

func init() {
	graft.Register(graft.Node[*Walker]{
		ID:        WalkerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Walker, error) {
			return NewWalker(), nil
		},
	})

	graft.Register(graft.Node[ports.Fingerprinter]{
		ID:        HasherNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Fingerprinter, error) {
			return NewHasher(), nil
		},
	})
}
