// Package ports defines the core interfaces for the loading engine.
package ports

import "go.trai.ch/jit/internal/core/domain"

// PathResolver maps a specifier to a file on disk.
type PathResolver interface {
	// Resolve turns a specifier requested from fromDir into an existing regular file.
	// It returns domain.ErrNotFound if no candidate exists.
	Resolve(specifier, fromDir string) (domain.ResolvedModule, error)
}
