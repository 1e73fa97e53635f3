package config

import (
	"encoding/json"
	"errors"
	"maps"
	"path/filepath"
	"strconv"

	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/zerr"
)

const dotEnvFileName = ".env"

// Environment variables understood by the loader.
const (
	EnvDebug            = "JITI_DEBUG"
	EnvCache            = "JITI_CACHE"
	EnvSourceMaps       = "JITI_SOURCE_MAPS"
	EnvRequireCache     = "JITI_REQUIRE_CACHE"
	EnvInteropDefault   = "JITI_INTEROP_DEFAULT"
	EnvAlias            = "JITI_ALIAS"
	EnvNativeModules    = "JITI_NATIVE_MODULES"
	EnvTransformModules = "JITI_TRANSFORM_MODULES"
	EnvExtensions       = "JITI_EXTENSIONS"
)

func applyEnv(opts *domain.LoaderOptions, lookup func(string) (string, bool), cwd string) error {
	for key, dst := range map[string]*bool{
		EnvDebug:          &opts.Debug,
		EnvSourceMaps:     &opts.SourceMaps,
		EnvRequireCache:   &opts.RequireCache,
		EnvInteropDefault: &opts.Interop,
	} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return invalidEnv(key, v, err)
		}
		*dst = b
	}

	// JITI_CACHE is a boolean or a cache directory.
	if v, ok := lookup(EnvCache); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.Cache = b
		} else {
			opts.Cache = true
			opts.CacheDir = v
			if !filepath.IsAbs(v) {
				opts.CacheDir = filepath.Join(cwd, v)
			}
		}
	}

	var alias map[string]string
	if err := decodeEnv(lookup, EnvAlias, &alias); err != nil {
		return err
	}
	if len(alias) > 0 {
		if opts.Alias == nil {
			opts.Alias = map[string]string{}
		}
		maps.Copy(opts.Alias, alias)
	}

	for key, dst := range map[string]*[]string{
		EnvNativeModules:    &opts.NativeModules,
		EnvTransformModules: &opts.TransformModules,
		EnvExtensions:       &opts.Extensions,
	} {
		var list []string
		if err := decodeEnv(lookup, key, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			*dst = list
		}
	}

	return nil
}

// decodeEnv unmarshals the JSON value of key into target. Unset keys leave
// target untouched.
func decodeEnv(lookup func(string) (string, bool), key string, target any) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(v), target); err != nil {
		return invalidEnv(key, v, err)
	}
	return nil
}

func invalidEnv(key, value string, err error) error {
	return zerr.With(zerr.With(errors.Join(domain.ErrInvalidEnvValue, err), "variable", key), "value", value)
}
