package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/jit/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/jit/internal/adapters/esbuild"   //nolint:depguard // Wired in app layer
	"go.trai.ch/jit/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/jit/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/jit/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/jit/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/jit/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			esbuild.NodeID,
			telemetry.TracerNodeID,
			fs.WalkerNodeID,
			watcher.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: app, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	transformer, err := graft.Dep[ports.Transformer](ctx)
	if err != nil {
		return nil, err
	}

	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}

	walker, err := graft.Dep[*fs.Walker](ctx)
	if err != nil {
		return nil, err
	}

	w, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, log, transformer, tracer, walker, w), nil
}
