package ports

import "go.trai.ch/jit/internal/core/domain"

// PolicyMatcher decides how a resolved path is loaded.
type PolicyMatcher interface {
	// Classify returns the transform policy for an absolute path.
	Classify(path string) domain.Classification
}
