package domain

import (
	"maps"
	"slices"
)

// Recognized Extras keys. Unknown keys are kept and fingerprinted but ignored
// by the default transformer.
const (
	// ExtraTarget selects the output language level, e.g. "es2020" or "esnext".
	ExtraTarget = "target"
	// ExtraJSXFactory overrides the JSX element factory, e.g. "h".
	ExtraJSXFactory = "jsxFactory"
	// ExtraJSXFragment overrides the JSX fragment factory, e.g. "Fragment".
	ExtraJSXFragment = "jsxFragment"
	// ExtraLoader forces a source loader, one of "js", "jsx", "ts", "tsx".
	ExtraLoader = "loader"
)

// Extras is the extensible key-value part of TransformOptions.
type Extras map[string]string

// Keys returns the keys in sorted order.
func (e Extras) Keys() []string {
	return slices.Sorted(maps.Keys(e))
}

// Get returns the value for key, or "" when unset.
func (e Extras) Get(key string) string {
	if e == nil {
		return ""
	}
	return e[key]
}

// Merge returns a copy of e overlaid with other.
func (e Extras) Merge(other Extras) Extras {
	out := make(Extras, len(e)+len(other))
	maps.Copy(out, e)
	maps.Copy(out, other)
	return out
}

// TransformOptions describes one transformation. Every field takes part in the
// cache fingerprint; Source participates through SourceHash.
type TransformOptions struct {
	Source        string
	SourceHash    string
	Filename      string
	TS            bool
	JSX           bool
	// RetainLines asks for output on the same lines as the source. The engine
	// never sets it; it is passed through from Transform callers to custom
	// transformers and ignored by the esbuild transformer, which has no such mode.
	RetainLines   bool
	Async         bool
	SourceMaps    bool
	Interop       bool
	EngineVersion string
	Extra         Extras
}

// TransformResult is what a transformer returns. A non-empty Error is a hard failure.
type TransformResult struct {
	Code      string
	SourceMap string
	Error     string
	// CacheHit reports whether Code was served from the cache.
	CacheHit  bool
}
