// Package cache implements the persistence layer for cached font blobs.
// It stores one raw blob per cache key on a billy filesystem, tracks entry
// metadata in an atomically persisted JSON index, and transparently applies
// a retention policy after every write.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/opencontainers/go-digest"
)

// Store manages cached font blobs under a base directory.
//
// The on-disk layout is one file per key under fonts/, an index.json with
// entry metadata, and a tmp/ scratch directory for atomic writes. Blob
// content always lands via temp file + rename, so readers never observe a
// partially written font.
//
// All methods are safe for concurrent use. A single store-wide mutex
// serializes mutations; blob bytes are staged outside the lock so a slow
// streamed download never blocks other operations.
type Store struct {
	basePath  string // Base cache directory
	fontsDir  string // fonts/ subdirectory
	tmpDir    string // tmp/ scratch subdirectory
	indexPath string // index.json path

	fs           billy.Filesystem // Filesystem abstraction for all I/O
	index        *cacheIndex      // Metadata index
	logger       *Logger
	policy       RetentionPolicy // Default policy for Prune and GC
	verifyOnRead bool

	mu sync.Mutex
}

// NewStore creates a font store rooted at basePath, creating the directory
// layout as needed and loading any existing index so previously cached
// fonts stay available across restarts.
//
// By default the store uses the local filesystem; WithFilesystem swaps in a
// virtual one for tests.
//
// Example:
//
//	store, err := cache.NewStore("/home/user/.cache/fontcache")
func NewStore(basePath string, opts ...StoreOption) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	options := &storeOptions{
		fs:           osfs.New("/"),
		logger:       NewNopLogger(),
		policy:       DefaultRetentionPolicy(),
		verifyOnRead: true,
	}
	for _, opt := range opts {
		opt(options)
	}

	fontsDir := filepath.Join(basePath, "fonts")
	tmpDir := filepath.Join(basePath, "tmp")
	indexPath := filepath.Join(basePath, "index.json")

	if err := options.fs.MkdirAll(fontsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create fonts directory: %w", err)
	}
	if err := options.fs.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tmp directory: %w", err)
	}

	index, err := loadOrCreateIndex(options.fs, indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	s := &Store{
		basePath:     basePath,
		fontsDir:     fontsDir,
		tmpDir:       tmpDir,
		indexPath:    indexPath,
		fs:           options.fs,
		index:        index,
		logger:       options.logger,
		policy:       options.policy,
		verifyOnRead: options.verifyOnRead,
	}

	if err := s.recover(); err != nil {
		return nil, err
	}

	return s, nil
}

// blobPath returns the on-disk path for a cache key.
func (s *Store) blobPath(key string) string {
	return filepath.Join(s.fontsDir, key)
}

// recover reconciles the index with the filesystem after a crash: blobs
// without an index entry and leftover temp files are removed, index entries
// without a blob are dropped.
func (s *Store) recover() error {
	changed := false

	entries := s.index.list()
	for key, entry := range entries {
		if _, err := s.fs.Stat(s.blobPath(entry.Key)); os.IsNotExist(err) {
			s.index.delete(key)
			changed = true
		}
	}

	if infos, err := s.fs.ReadDir(s.fontsDir); err == nil {
		for _, info := range infos {
			if info.IsDir() {
				continue
			}
			if s.index.get(info.Name()) == nil {
				_ = s.fs.Remove(filepath.Join(s.fontsDir, info.Name()))
			}
		}
	}

	if infos, err := s.fs.ReadDir(s.tmpDir); err == nil {
		for _, info := range infos {
			_ = s.fs.Remove(filepath.Join(s.tmpDir, info.Name()))
		}
	}

	if changed {
		if err := s.index.save(s.fs, s.indexPath); err != nil {
			return fmt.Errorf("failed to save recovered index: %w", err)
		}
	}
	return nil
}

// Write stores data under key atomically, records its metadata, and applies
// the retention policy. The entry just written is never evicted by its own
// write. Overwriting an existing key preserves the original creation time.
func (s *Store) Write(ctx context.Context, key, locator string, data []byte, policy RetentionPolicy) (*Entry, error) {
	sw, err := s.NewStreamWriter(ctx, key, locator)
	if err != nil {
		return nil, err
	}

	if _, err := sw.Write(data); err != nil {
		_ = sw.Abort()
		return nil, err
	}

	return sw.Commit(ctx, policy)
}

// Read returns the blob cached under key and refreshes its last-access
// time. Returns ErrEntryNotFound when the key is absent, and ErrCorrupted
// when integrity verification is enabled and the blob no longer matches the
// digest recorded at write time.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.index.get(key)
	if entry == nil {
		LogCacheMiss(ctx, s.logger, key)
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}

	data, err := util.ReadFile(s.fs, s.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			// Blob vanished out from under the index. Drop the entry so
			// later checks report a clean miss.
			s.index.delete(key)
			_ = s.index.save(s.fs, s.indexPath)
			LogCacheMiss(ctx, s.logger, key)
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
		}
		return nil, fmt.Errorf("failed to read cached blob %q: %w", key, err)
	}

	if s.verifyOnRead && digest.FromBytes(data) != entry.Digest {
		return nil, fmt.Errorf("%w: %s", ErrCorrupted, key)
	}

	s.index.touch(key)
	if err := s.index.save(s.fs, s.indexPath); err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}

	LogCacheHit(ctx, s.logger, key, entry.Size)
	return data, nil
}

// Exists reports whether a blob is cached under key. It checks both the
// index and the filesystem and has no side effects.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index.get(key) == nil {
		return false, nil
	}

	if _, err := s.fs.Stat(s.blobPath(key)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat cached blob %q: %w", key, err)
	}
	return true, nil
}

// Delete removes the blob cached under key. Returns ErrEntryNotFound when
// nothing is cached under the key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if key == "" {
		return fmt.Errorf("%w: empty key", ErrEntryNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.index.get(key)
	path := s.blobPath(key)

	if entry == nil {
		// Tolerate an orphaned blob: remove it if present, otherwise the
		// key was never cached.
		if _, err := s.fs.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, key)
		}
		if err := s.fs.Remove(path); err != nil {
			return fmt.Errorf("failed to remove cached blob %q: %w", key, err)
		}
		return nil
	}

	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cached blob %q: %w", key, err)
	}

	s.index.delete(key)
	if err := s.index.save(s.fs, s.indexPath); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	s.logger.Debug(ctx, "cache entry removed", "key", key, "size", entry.Size)
	return nil
}

// Clear removes every cached blob and resets the index.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.fs.ReadDir(s.fontsDir)
	if err != nil {
		return fmt.Errorf("failed to read fonts directory: %w", err)
	}
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.fontsDir, info.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove cached blob %q: %w", info.Name(), err)
		}
	}

	s.index.reset()
	if err := s.index.save(s.fs, s.indexPath); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	s.logger.Info(ctx, "cache cleared", "entries_removed", len(infos))
	return nil
}

// Stats returns statistics about the store contents.
func (s *Store) Stats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{}
	for _, entry := range s.index.list() {
		stats.Entries++
		stats.TotalSize += entry.Size

		if stats.OldestAccess == nil || entry.LastAccess.Before(*stats.OldestAccess) {
			t := entry.LastAccess
			stats.OldestAccess = &t
		}
		if stats.NewestAccess == nil || entry.LastAccess.After(*stats.NewestAccess) {
			t := entry.LastAccess
			stats.NewestAccess = &t
		}
	}

	return stats, nil
}
