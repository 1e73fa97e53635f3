package domain

import "go.trai.ch/zerr"

var (
	// ErrNotFound is returned when a specifier cannot be mapped to an existing file.
	ErrNotFound = zerr.New("cannot find module")

	// ErrEmptySpecifier is returned when a load is requested with an empty specifier.
	ErrEmptySpecifier = zerr.New("module specifier is empty")

	// ErrPackageManifestInvalid is returned when a package.json cannot be parsed during resolution.
	ErrPackageManifestInvalid = zerr.New("invalid package.json")

	// ErrTransformFailed is returned when the transformer reports a syntax or semantic problem.
	ErrTransformFailed = zerr.New("transform failed")

	// ErrSourceReadFailed is returned when a module's source file cannot be read.
	ErrSourceReadFailed = zerr.New("failed to read module source")

	// ErrCacheMiss is returned when a requested fingerprint is not found in the cache.
	ErrCacheMiss = zerr.New("cache miss")

	// ErrCacheCreateFailed is returned when the cache directory cannot be created.
	ErrCacheCreateFailed = zerr.New("failed to create cache directory")

	// ErrCacheReadFailed is returned when a cache entry cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read cache entry")

	// ErrCacheWriteFailed is returned when a cache entry cannot be written.
	ErrCacheWriteFailed = zerr.New("failed to write cache entry")

	// ErrCacheUnmarshalFailed is returned when a cache entry cannot be decoded.
	ErrCacheUnmarshalFailed = zerr.New("failed to unmarshal cache entry")

	// ErrCacheMarshalFailed is returned when a cache entry cannot be encoded.
	ErrCacheMarshalFailed = zerr.New("failed to marshal cache entry")

	// ErrCachePruneFailed is returned when stale cache entries cannot be removed.
	ErrCachePruneFailed = zerr.New("failed to prune cache")

	// ErrCompileFailed is returned when transformed code cannot be compiled by the runtime.
	ErrCompileFailed = zerr.New("failed to compile module")

	// ErrExecutionFailed is returned when a module throws during its top-level execution.
	ErrExecutionFailed = zerr.New("module execution failed")

	// ErrModuleNotSettled is returned when an async module's completion promise never settles.
	ErrModuleNotSettled = zerr.New("async module did not settle")

	// ErrNativeLoadFailed is returned when the host's native loader fails to load a module.
	ErrNativeLoadFailed = zerr.New("native load failed")

	// ErrRegistryClosed is returned when a module registry is used after it was torn down.
	ErrRegistryClosed = zerr.New("module registry is closed")

	// ErrRegistryConflict is returned when inserting over a record owned by the native loader.
	ErrRegistryConflict = zerr.New("module registry entry is owned by the native loader")

	// ErrLoaderClosed is returned when a loader is used after Close.
	ErrLoaderClosed = zerr.New("loader is closed")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidEnvValue is returned when a JITI_* environment variable holds malformed JSON.
	ErrInvalidEnvValue = zerr.New("invalid environment value")

	// ErrWatcherStarted is returned when a file watcher is started twice or after it was stopped.
	ErrWatcherStarted = zerr.New("watcher already started")

	// ErrEntryFailed is returned when the entry module of a run fails to load or execute.
	ErrEntryFailed = zerr.New("entry module failed")

	// ErrWarmIncomplete is returned when some files could not be transformed while warming the cache.
	ErrWarmIncomplete = zerr.New("some files failed to transform")

	// ErrInvalidAlias is returned when an alias flag is not of the form key=value.
	ErrInvalidAlias = zerr.New("invalid alias, expected format: from=to")
)
