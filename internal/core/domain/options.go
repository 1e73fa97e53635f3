package domain

import (
	"maps"
	"slices"
	"time"
)

// DefaultExtensions is the extension probe order used when none is configured.
var DefaultExtensions = []string{".js", ".mjs", ".cjs", ".ts", ".mts", ".cts", ".tsx", ".jsx", ".json"}

// DefaultCacheRetention is how long cache entries are kept by a prune without an explicit window.
const DefaultCacheRetention = 14 * 24 * time.Hour

// DefaultCacheVersion names the on-disk layout generation.
const DefaultCacheVersion = "v1"

// LoaderOptions is the engine-wide configuration. It is resolved once when an
// engine is constructed and never mutated afterwards.
type LoaderOptions struct {
	Extensions       []string
	Alias            map[string]string
	NativeModules    []string
	TransformModules []string

	Cache          bool
	CacheDir       string
	CacheVersion   string
	CacheRetention time.Duration

	SourceMaps   bool
	RequireCache bool
	Interop      bool
	Debug        bool

	// TransformOptions are default extras passed to every transformation.
	TransformOptions Extras
}

// DefaultLoaderOptions returns the defaults: cache, source maps and require
// cache on, interop off.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		Extensions:     slices.Clone(DefaultExtensions),
		Alias:          map[string]string{},
		Cache:          true,
		CacheVersion:   DefaultCacheVersion,
		CacheRetention: DefaultCacheRetention,
		SourceMaps:     true,
		RequireCache:   true,
	}
}

// Clone returns a deep copy so the caller's slices and maps cannot alias the engine's.
func (o LoaderOptions) Clone() LoaderOptions {
	out := o
	out.Extensions = slices.Clone(o.Extensions)
	out.Alias = maps.Clone(o.Alias)
	out.NativeModules = slices.Clone(o.NativeModules)
	out.TransformModules = slices.Clone(o.TransformModules)
	out.TransformOptions = maps.Clone(o.TransformOptions)
	if len(out.Extensions) == 0 {
		out.Extensions = slices.Clone(DefaultExtensions)
	}
	if out.CacheVersion == "" {
		out.CacheVersion = DefaultCacheVersion
	}
	if out.CacheRetention <= 0 {
		out.CacheRetention = DefaultCacheRetention
	}
	return out
}
