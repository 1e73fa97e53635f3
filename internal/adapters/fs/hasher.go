package fs

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
)

var _ ports.Fingerprinter = (*Hasher)(nil)

// Hasher computes source hashes and transform fingerprints with XXHash.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashSource computes the XXHash of a source text.
func (h *Hasher) HashSource(source string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(source))
}

// Fingerprint computes the cache key for a transformation. The key is the
// source hash followed by a hash of every option, so entries for the same
// source share a prefix.
func (h *Hasher) Fingerprint(opts domain.TransformOptions) string {
	sourceHash := opts.SourceHash
	if sourceHash == "" {
		sourceHash = h.HashSource(opts.Source)
	}

	hasher := xxhash.New()

	writeField(hasher, "source", sourceHash)
	writeField(hasher, "filename", opts.Filename)
	writeField(hasher, "engine", opts.EngineVersion)
	_, _ = hasher.Write([]byte{0}) // Section separator

	h.hashFlags(opts, hasher)
	h.hashExtras(opts.Extra, hasher)

	return sourceHash + fmt.Sprintf("%016x", hasher.Sum64())
}

// hashFlags hashes the boolean options in a fixed order.
func (h *Hasher) hashFlags(opts domain.TransformOptions, hasher *xxhash.Digest) {
	flags := []bool{opts.TS, opts.JSX, opts.RetainLines, opts.Async, opts.SourceMaps, opts.Interop}
	for _, f := range flags {
		if f {
			_, _ = hasher.Write([]byte{'1'})
		} else {
			_, _ = hasher.Write([]byte{'0'})
		}
	}
	_, _ = hasher.Write([]byte{0})
}

// hashExtras hashes extra options in a deterministic order.
func (h *Hasher) hashExtras(extras domain.Extras, hasher *xxhash.Digest) {
	for _, k := range extras.Keys() {
		_, _ = hasher.WriteString(k)
		_, _ = hasher.Write([]byte{'='})
		_, _ = hasher.WriteString(extras[k])
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write([]byte{0})
}

func writeField(hasher *xxhash.Digest, name, value string) {
	_, _ = hasher.WriteString(name)
	_, _ = hasher.Write([]byte{'='})
	_, _ = hasher.WriteString(value)
	_, _ = hasher.Write([]byte{0})
}
