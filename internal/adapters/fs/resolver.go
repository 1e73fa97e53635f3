package fs

import (
	"encoding/json"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.PathResolver = (*Resolver)(nil)

type alias struct {
	from string
	to   string
}

// Resolver implements ports.PathResolver with alias rewriting, extension
// probing and directory entry points. It only stats and reads files.
type Resolver struct {
	extensions []string
	aliases    []alias
}

// NewResolver creates a Resolver. Extensions are probed in the given order.
func NewResolver(extensions []string, aliases map[string]string) *Resolver {
	r := &Resolver{extensions: slices.Clone(extensions)}
	for from, to := range aliases {
		r.aliases = append(r.aliases, alias{from: strings.TrimSuffix(from, "/"), to: strings.TrimSuffix(to, "/")})
	}
	// Longest prefix first; ties broken lexically so the order is deterministic.
	slices.SortFunc(r.aliases, func(a, b alias) int {
		if len(a.from) != len(b.from) {
			return len(b.from) - len(a.from)
		}
		return strings.Compare(a.from, b.from)
	})
	return r
}

// Resolve maps specifier, requested from fromDir, to an existing regular file.
func (r *Resolver) Resolve(specifier, fromDir string) (domain.ResolvedModule, error) {
	if specifier == "" {
		return domain.ResolvedModule{}, domain.ErrEmptySpecifier
	}

	req := r.Alias(strings.TrimPrefix(specifier, "file://"))

	for _, base := range r.bases(req, fromDir) {
		path, err := r.probe(base)
		if err != nil {
			return domain.ResolvedModule{}, err
		}
		if path != "" {
			return domain.ResolvedModule{
				AbsolutePath: path,
				Extension:    filepath.Ext(path),
			}, nil
		}
	}

	err := zerr.Wrap(domain.ErrNotFound, "resolve "+specifier)
	return domain.ResolvedModule{}, zerr.With(err, "from", fromDir)
}

// Alias applies the longest matching alias to the leading segment of req.
// Unmatched specifiers are returned unchanged.
func (r *Resolver) Alias(req string) string {
	for _, a := range r.aliases {
		if req == a.from {
			return a.to
		}
		if strings.HasPrefix(req, a.from+"/") {
			return a.to + req[len(a.from):]
		}
	}
	return req
}

// bases returns the candidate base paths for req in lookup order.
func (r *Resolver) bases(req, fromDir string) []string {
	switch {
	case filepath.IsAbs(req):
		return []string{filepath.Clean(req)}
	case isRelative(req):
		return []string{filepath.Join(fromDir, req)}
	}

	// Bare specifier: walk up node_modules directories.
	var bases []string
	dir := filepath.Clean(fromDir)
	for {
		if filepath.Base(dir) != domain.NodeModulesDirName {
			bases = append(bases, filepath.Join(dir, domain.NodeModulesDirName, req))
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return bases
		}
		dir = parent
	}
}

// probe tries base as a file, base plus each extension, and base as a directory.
// It returns "" when nothing matches.
func (r *Resolver) probe(base string) (string, error) {
	if isFile(base) {
		return base, nil
	}
	if path := r.withExtensions(base); path != "" {
		return path, nil
	}
	if !isDir(base) {
		return "", nil
	}
	return r.probeDir(base)
}

func (r *Resolver) withExtensions(base string) string {
	for _, ext := range r.extensions {
		if isFile(base + ext) {
			return base + ext
		}
	}
	return ""
}

// probeDir resolves a directory through package.json "main" and then index files.
func (r *Resolver) probeDir(dir string) (string, error) {
	main, err := readMain(dir)
	if err != nil {
		return "", err
	}
	if main != "" {
		entry := filepath.Join(dir, main)
		if isFile(entry) {
			return entry, nil
		}
		if path := r.withExtensions(entry); path != "" {
			return path, nil
		}
		if path := r.withExtensions(filepath.Join(entry, domain.IndexFileBase)); path != "" {
			return path, nil
		}
	}
	return r.withExtensions(filepath.Join(dir, domain.IndexFileBase)), nil
}

type packageManifest struct {
	Main string `json:"main"`
}

func readMain(dir string) (string, error) {
	path := filepath.Join(dir, domain.PackageManifestName)
	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the resolution base
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return "", nil
		}
		return "", zerr.With(errors.Join(domain.ErrPackageManifestInvalid, err), "path", path)
	}

	var manifest packageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", zerr.With(errors.Join(domain.ErrPackageManifestInvalid, err), "path", path)
	}
	return manifest.Main, nil
}

func isRelative(req string) bool {
	return req == "." || req == ".." ||
		strings.HasPrefix(req, "./") || strings.HasPrefix(req, "../")
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
