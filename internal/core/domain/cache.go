package domain

import "time"

// CacheEntry is a persisted transform artifact. Entries are immutable; a new
// fingerprint is a new entry.
type CacheEntry struct {
	Key       string    `json:"key"`
	Code      string    `json:"code"`
	SourceMap string    `json:"source_map,omitzero"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// PruneReport summarizes a cache prune.
type PruneReport struct {
	Scanned int
	Removed int
	Bytes   int64
}
