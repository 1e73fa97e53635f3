package ports

import "go.trai.ch/jit/internal/core/domain"

// ConfigLoader defines the interface for loading the loader configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load resolves LoaderOptions for the given working directory.
	Load(cwd string) (domain.LoaderOptions, error)
}
