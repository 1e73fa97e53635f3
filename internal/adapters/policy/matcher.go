// Package policy classifies resolved module paths into transform policies.
package policy

import (
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
)

var _ ports.PolicyMatcher = (*Matcher)(nil)

// Matcher implements ports.PolicyMatcher from the native and transform module lists.
// An entry is either a package name (matched against the package directory
// following a node_modules segment) or an absolute path prefix.
type Matcher struct {
	native    []string
	transform []string
}

// NewMatcher creates a Matcher.
func NewMatcher(nativeModules, transformModules []string) *Matcher {
	return &Matcher{
		native:    normalize(nativeModules),
		transform: normalize(transformModules),
	}
}

// Classify returns the policy for path. The transform list wins over the native list.
func (m *Matcher) Classify(path string) domain.Classification {
	pkgs := packagesOf(path)

	if m.matches(m.transform, path, pkgs) {
		return domain.ClassForceTransform
	}
	if m.matches(m.native, path, pkgs) {
		return domain.ClassNative
	}
	return domain.ClassDefault
}

func (m *Matcher) matches(entries []string, path string, pkgs []string) bool {
	for _, entry := range entries {
		if filepath.IsAbs(entry) {
			if path == entry || strings.HasPrefix(path, entry+string(filepath.Separator)) {
				return true
			}
			continue
		}
		if slices.Contains(pkgs, entry) {
			return true
		}
	}
	return false
}

// packagesOf returns the package names that follow each node_modules segment of path.
func packagesOf(path string) []string {
	parts := strings.Split(filepath.ToSlash(path), "/")

	var pkgs []string
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] != domain.NodeModulesDirName {
			continue
		}
		name := parts[i+1]
		if strings.HasPrefix(name, "@") && i+2 < len(parts) {
			name += "/" + parts[i+2]
		}
		pkgs = append(pkgs, name)
	}
	return pkgs
}

func normalize(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if filepath.IsAbs(e) {
			e = filepath.Clean(e)
		} else {
			e = strings.TrimSuffix(filepath.ToSlash(e), "/")
		}
		out = append(out, e)
	}
	return out
}
