// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/jit/internal/adapters/config"
	_ "go.trai.ch/jit/internal/adapters/esbuild"
	_ "go.trai.ch/jit/internal/adapters/fs"
	_ "go.trai.ch/jit/internal/adapters/logger"
	_ "go.trai.ch/jit/internal/adapters/telemetry"
	_ "go.trai.ch/jit/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/jit/internal/app"
)
