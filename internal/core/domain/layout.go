package domain

import (
	"os"
	"path/filepath"
)

const (
	// CacheDirName is the name of the project-local cache directory under node_modules/.cache.
	CacheDirName = "jit"

	// TempCacheDirName is the name of the fallback cache directory under the system temp dir.
	TempCacheDirName = "node-jit"

	// NodeModulesDirName is the name of the dependency directory.
	NodeModulesDirName = "node_modules"

	// PackageManifestName is the name of a package manifest.
	PackageManifestName = "package.json"

	// IndexFileBase is the base name probed when a specifier resolves to a directory.
	IndexFileBase = "index"

	// ConfigFileName is the name of the loader configuration file.
	ConfigFileName = "jit.yaml"

	// CacheEntryExt is the file extension of a persisted cache entry.
	CacheEntryExt = ".json"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// ProjectCachePath returns the project-local cache directory for the given working directory.
func ProjectCachePath(cwd string) string {
	return filepath.Join(cwd, NodeModulesDirName, ".cache", CacheDirName)
}

// TempCachePath returns the fallback cache directory under the system temp dir.
func TempCachePath() string {
	return filepath.Join(os.TempDir(), TempCacheDirName)
}
