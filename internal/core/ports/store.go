package ports

import (
	"context"
	"time"

	"go.trai.ch/jit/internal/core/domain"
)

// CacheStore persists transform artifacts by fingerprint.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type CacheStore interface {
	// Lookup returns the entry stored under key, or domain.ErrCacheMiss.
	Lookup(key string) (*domain.CacheEntry, error)

	// Store persists entry under entry.Key. A partially written entry is never observable.
	Store(entry domain.CacheEntry) error

	// Enabled reports whether the store currently reads and writes entries.
	Enabled() bool

	// Dir returns the versioned directory entries live in, or "" when disabled.
	Dir() string

	// Prune removes entries created before now minus olderThan.
	Prune(ctx context.Context, olderThan time.Duration) (domain.PruneReport, error)
}
