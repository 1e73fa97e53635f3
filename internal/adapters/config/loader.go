// Package config resolves loader options from jit.yaml, .env and the JITI_*
// environment variables.
package config

import (
	"errors"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader. Sources are applied in order:
// defaults, the nearest jit.yaml, then environment variables. Variables from
// a .env file in the working directory apply unless the process sets them.
type Loader struct {
	Logger    ports.Logger
	LookupEnv func(key string) (string, bool)
}

// NewLoader creates a Loader reading the process environment.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, LookupEnv: os.LookupEnv}
}

// Load resolves the options for cwd.
func (l *Loader) Load(cwd string) (domain.LoaderOptions, error) {
	opts := domain.DefaultLoaderOptions()

	if path, ok := findConfigFile(cwd); ok {
		var file File
		if err := readAndUnmarshalYAML(path, &file); err != nil {
			return opts, err
		}
		if err := applyFile(&opts, &file, filepath.Dir(path)); err != nil {
			return opts, zerr.With(err, "config", path)
		}
		l.Logger.Debug("loaded config", "path", path)
	}

	lookup, err := l.lookup(cwd)
	if err != nil {
		return opts, err
	}
	if err := applyEnv(&opts, lookup, cwd); err != nil {
		return opts, err
	}

	return opts.Clone(), nil
}

// lookup returns an environment lookup backed by the process environment
// and, as a fallback, cwd/.env.
func (l *Loader) lookup(cwd string) (func(string) (string, bool), error) {
	lookupEnv := l.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	path := filepath.Join(cwd, dotEnvFileName)
	dotenv, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return lookupEnv, nil
		}
		return nil, zerr.With(errors.Join(domain.ErrConfigReadFailed, err), "path", path)
	}
	l.Logger.Debug("loaded environment file", "path", path)

	return func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

// findConfigFile walks up from cwd to the nearest jit.yaml.
func findConfigFile(cwd string) (string, bool) {
	dir := filepath.Clean(cwd)
	for {
		path := filepath.Join(dir, domain.ConfigFileName)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// applyFile overlays the fields set in file. Relative paths are taken from
// the directory of the config file.
func applyFile(opts *domain.LoaderOptions, file *File, baseDir string) error {
	if len(file.Extensions) > 0 {
		opts.Extensions = file.Extensions
	}
	for from, to := range file.Alias {
		opts.Alias[from] = resolvePath(baseDir, to)
	}
	if len(file.NativeModules) > 0 {
		opts.NativeModules = resolveEntries(baseDir, file.NativeModules)
	}
	if len(file.TransformModules) > 0 {
		opts.TransformModules = resolveEntries(baseDir, file.TransformModules)
	}
	if file.Cache != nil {
		opts.Cache = *file.Cache
	}
	if file.CacheDir != "" {
		opts.CacheDir = resolvePath(baseDir, file.CacheDir)
	}
	if file.CacheVersion != "" {
		opts.CacheVersion = file.CacheVersion
	}
	if file.CacheRetention != "" {
		retention, err := time.ParseDuration(file.CacheRetention)
		if err != nil {
			return zerr.With(errors.Join(domain.ErrConfigParseFailed, err), "field", "cacheRetention")
		}
		opts.CacheRetention = retention
	}
	setBool(&opts.SourceMaps, file.SourceMaps)
	setBool(&opts.RequireCache, file.RequireCache)
	setBool(&opts.Interop, file.InteropDefault)
	setBool(&opts.Debug, file.Debug)
	if len(file.TransformOptions) > 0 {
		if opts.TransformOptions == nil {
			opts.TransformOptions = domain.Extras{}
		}
		maps.Copy(opts.TransformOptions, file.TransformOptions)
	}
	return nil
}

func setBool(dst, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// resolvePath anchors relative filesystem paths at baseDir. Package names
// and other bare values are returned unchanged.
func resolvePath(baseDir, value string) string {
	if len(value) > 1 && value[0] == '.' && (value[1] == '/' || value[1] == '.') {
		return filepath.Join(baseDir, value)
	}
	return value
}

func resolveEntries(baseDir string, entries []string) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = resolvePath(baseDir, e)
	}
	return out
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into target.
func readAndUnmarshalYAML[T any](path string, target *T) error {
	// #nosec G304 -- path is discovered from the working directory
	data, err := os.ReadFile(path)
	if err != nil {
		return zerr.With(errors.Join(domain.ErrConfigReadFailed, err), "path", path)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return zerr.With(errors.Join(domain.ErrConfigParseFailed, err), "path", path)
	}
	return nil
}
