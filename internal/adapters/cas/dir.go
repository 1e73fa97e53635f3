package cas

import (
	"errors"
	"os"
	"path/filepath"

	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/zerr"
)

// ResolveDir picks the cache root. The explicit directory wins; otherwise the
// project-local directory is used when cwd has a writable node_modules, and
// the system temp directory is the fallback.
func ResolveDir(explicit, cwd string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", zerr.With(errors.Join(domain.ErrCacheCreateFailed, err), "dir", explicit)
		}
		return abs, nil
	}

	if cwd != "" {
		if info, err := os.Stat(filepath.Join(cwd, domain.NodeModulesDirName)); err == nil && info.IsDir() {
			dir := domain.ProjectCachePath(cwd)
			if writable(dir) {
				return dir, nil
			}
		}
	}

	dir := domain.TempCachePath()
	if !writable(dir) {
		return "", zerr.Wrap(domain.ErrCacheCreateFailed, dir)
	}
	return dir, nil
}

// writable reports whether dir exists or can be created and accepts new files.
func writable(dir string) bool {
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return false
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return true
}
