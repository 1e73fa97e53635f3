// Package fs provides file system adapters for resolving, hashing and walking files.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
)

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields all files under root whose names end in one of exts.
// An empty exts yields every file. Directories named in skip are not entered.
func (w *Walker) WalkFiles(root string, exts, skip []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable entries are skipped, not fatal.
				return nil //nolint:nilerr // Intentional
			}

			if d.IsDir() {
				if path != root && w.shouldSkipDir(d.Name(), skip) {
					return filepath.SkipDir
				}
				return nil
			}

			if !matchesExt(d.Name(), exts) {
				return nil
			}

			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// WalkDirs yields root and every directory below it, skipping the names in skip.
func (w *Walker) WalkDirs(root string, skip []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil //nolint:nilerr // Intentional
			}
			if path != root && w.shouldSkipDir(d.Name(), skip) {
				return filepath.SkipDir
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// shouldSkipDir checks if a directory should be skipped.
func (w *Walker) shouldSkipDir(name string, skip []string) bool {
	// Always skip VCS metadata.
	if name == ".git" || name == ".jj" {
		return true
	}
	for _, pattern := range skip {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func matchesExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
