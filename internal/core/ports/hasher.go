package ports

import "go.trai.ch/jit/internal/core/domain"

// Fingerprinter computes cache keys. Implementations must be pure.
type Fingerprinter interface {
	// HashSource returns the content hash of a source text.
	HashSource(source string) string
	// Fingerprint returns the cache key for a transformation.
	Fingerprint(opts domain.TransformOptions) string
}
