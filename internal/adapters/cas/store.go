// Package cas implements the content-addressed transform cache.
package cas

import (
	"encoding/json"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultMemoryEntries is the size of the in-memory front of a Store.
const DefaultMemoryEntries = 512

const tempSuffix = ".tmp"

var _ ports.CacheStore = (*Store)(nil)

// Config selects and configures the cache directory.
type Config struct {
	Enabled bool
	// Dir is an explicit cache root. Empty selects the project or temp directory.
	Dir string
	// Cwd is the directory the project-local cache is looked up from.
	Cwd     string
	Version string
}

// Store implements ports.CacheStore with one JSON file per entry, sharded by
// the first two characters of the key, behind an in-memory LRU.
type Store struct {
	dir     string
	logger  ports.Logger
	memory  *lru.Cache[string, domain.CacheEntry]
	enabled atomic.Bool
	warned  sync.Once
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMemoryEntries sets the size of the in-memory front. Zero disables it.
func WithMemoryEntries(n int) Option {
	return func(s *Store) {
		s.memory = nil
		if n > 0 {
			s.memory, _ = lru.New[string, domain.CacheEntry](n)
		}
	}
}

// WithClock sets the time source used for CreatedAt and pruning.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open resolves the cache directory described by cfg and returns a store for
// it. A store that cannot get a usable directory is returned disabled.
func Open(cfg Config, logger ports.Logger, opts ...Option) *Store {
	if !cfg.Enabled {
		return Disabled(logger)
	}

	root, err := ResolveDir(cfg.Dir, cfg.Cwd)
	if err != nil {
		s := Disabled(logger)
		s.warn(err)
		return s
	}

	version := cfg.Version
	if version == "" {
		version = domain.DefaultCacheVersion
	}
	return NewStore(filepath.Join(root, version), logger, opts...)
}

// NewStore creates a Store rooted at the versioned directory dir.
func NewStore(dir string, logger ports.Logger, opts ...Option) *Store {
	s := &Store{
		dir:    filepath.Clean(dir),
		logger: logger,
		now:    time.Now,
	}
	s.memory, _ = lru.New[string, domain.CacheEntry](DefaultMemoryEntries)
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.dir, domain.DirPerm); err != nil {
		s.disable(zerr.With(errors.Join(domain.ErrCacheCreateFailed, err), "dir", s.dir))
		return s
	}
	s.enabled.Store(true)
	return s
}

// Disabled returns a store that misses on every lookup and drops every write.
func Disabled(logger ports.Logger) *Store {
	return &Store{logger: logger, now: time.Now}
}

// Enabled reports whether the store reads and writes entries.
func (s *Store) Enabled() bool {
	return s.enabled.Load()
}

// Dir returns the versioned cache directory, or "" for a disabled store.
func (s *Store) Dir() string {
	if !s.Enabled() {
		return ""
	}
	return s.dir
}

// Lookup returns the entry stored under key. Missing and unreadable entries
// are reported as domain.ErrCacheMiss.
func (s *Store) Lookup(key string) (*domain.CacheEntry, error) {
	if !s.Enabled() {
		return nil, domain.ErrCacheMiss
	}

	if s.memory != nil {
		if entry, ok := s.memory.Get(key); ok {
			return &entry, nil
		}
	}

	path := s.entryPath(key)
	data, err := os.ReadFile(path) //nolint:gosec // Path is built from the cache dir and a hex key
	if err != nil {
		if !errors.Is(err, iofs.ErrNotExist) {
			s.disable(zerr.With(errors.Join(domain.ErrCacheReadFailed, err), "path", path))
		}
		return nil, domain.ErrCacheMiss
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Key != key {
		// The next Store for this key replaces the entry.
		s.logger.Debug("ignoring unreadable cache entry", "path", path)
		return nil, domain.ErrCacheMiss
	}

	if s.memory != nil {
		s.memory.Add(key, entry)
	}
	return &entry, nil
}

// Store writes entry under entry.Key. Write failures disable the store for
// the rest of the session instead of failing the caller.
func (s *Store) Store(entry domain.CacheEntry) error {
	if !s.Enabled() {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return zerr.With(errors.Join(domain.ErrCacheMarshalFailed, err), "key", entry.Key)
	}

	if err := s.write(s.entryPath(entry.Key), data); err != nil {
		s.disable(zerr.With(err, "key", entry.Key))
		return nil
	}

	if s.memory != nil {
		s.memory.Add(entry.Key, entry)
	}
	return nil
}

// write places data at path through a temporary file and a rename, so readers
// observe either no file or the complete file.
func (s *Store) write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return errors.Join(domain.ErrCacheCreateFailed, err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".*"+tempSuffix)
	if err != nil {
		return errors.Join(domain.ErrCacheWriteFailed, err)
	}
	tmpName := tmpFile.Name()

	defer func() {
		if _, err := os.Stat(tmpName); err == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return errors.Join(domain.ErrCacheWriteFailed, err)
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Join(domain.ErrCacheWriteFailed, err)
	}
	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		return errors.Join(domain.ErrCacheWriteFailed, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Join(domain.ErrCacheWriteFailed, err)
	}
	return nil
}

func (s *Store) entryPath(key string) string {
	shard := key
	if len(key) > 2 {
		shard = key[:2]
	}
	return filepath.Join(s.dir, shard, key+domain.CacheEntryExt)
}

func (s *Store) disable(err error) {
	s.enabled.Store(false)
	s.warn(err)
}

func (s *Store) warn(err error) {
	s.warned.Do(func() {
		s.logger.Warn("transform cache disabled", "dir", s.dir, "error", err)
	})
}
