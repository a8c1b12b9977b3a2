package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/opencontainers/go-digest"
)

// StreamWriter stages a blob in the store's scratch directory and publishes
// it atomically on Commit. Chunks are hashed as they arrive, so the content
// digest is ready without a second pass. Staging happens outside the store
// lock: a slow download never blocks other store operations.
//
// A StreamWriter must be finished with exactly one call to Commit or Abort.
// Abort after Commit is a no-op, so callers can safely defer it.
type StreamWriter struct {
	store   *Store
	key     string
	locator string

	file     billy.File
	tempPath string
	hasher   hash.Hash
	size     int64
	finished bool
}

// NewStreamWriter opens a staged writer for the given key. Nothing becomes
// visible under the key until Commit succeeds.
func (s *Store) NewStreamWriter(ctx context.Context, key, locator string) (*StreamWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("cache key cannot be empty")
	}

	file, err := s.fs.TempFile(s.tmpDir, "stage-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	return &StreamWriter{
		store:    s,
		key:      key,
		locator:  locator,
		file:     file,
		tempPath: file.Name(),
		hasher:   sha256.New(),
	}, nil
}

// Write appends a chunk to the staged blob.
func (sw *StreamWriter) Write(p []byte) (int, error) {
	if sw.finished {
		return 0, fmt.Errorf("write to finished stream writer")
	}

	n, err := sw.file.Write(p)
	if n > 0 {
		sw.hasher.Write(p[:n])
		sw.size += int64(n)
	}
	if err != nil {
		return n, fmt.Errorf("failed to write staged blob: %w", err)
	}
	return n, nil
}

// Size returns the number of bytes staged so far.
func (sw *StreamWriter) Size() int64 {
	return sw.size
}

// Commit atomically publishes the staged blob under the writer's key,
// records its metadata, and applies the retention policy. The freshly
// committed entry is never evicted by its own commit.
func (sw *StreamWriter) Commit(ctx context.Context, policy RetentionPolicy) (*Entry, error) {
	if sw.finished {
		return nil, fmt.Errorf("commit on finished stream writer")
	}
	if err := ctx.Err(); err != nil {
		_ = sw.Abort()
		return nil, err
	}
	sw.finished = true

	if err := sw.file.Close(); err != nil {
		_ = sw.store.fs.Remove(sw.tempPath)
		return nil, fmt.Errorf("failed to close staged blob: %w", err)
	}

	s := sw.store
	s.mu.Lock()
	defer s.mu.Unlock()

	finalPath := s.blobPath(sw.key)
	if err := s.fs.Rename(sw.tempPath, finalPath); err != nil {
		_ = s.fs.Remove(sw.tempPath)
		return nil, fmt.Errorf("failed to publish staged blob to %q: %w", finalPath, err)
	}

	now := time.Now()
	entry := &Entry{
		Key:        sw.key,
		Locator:    sw.locator,
		Size:       sw.size,
		Digest:     digest.NewDigest(digest.SHA256, sw.hasher),
		CreatedAt:  now,
		LastAccess: now,
	}
	if prev := s.index.get(sw.key); prev != nil {
		entry.CreatedAt = prev.CreatedAt
	}
	s.index.set(sw.key, entry)

	s.pruneLocked(ctx, policy, sw.key)

	if err := s.index.save(s.fs, s.indexPath); err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}

	s.logger.Debug(ctx, "cache entry stored",
		"key", sw.key,
		"size", entry.Size,
		"digest", entry.Digest.String())
	return entry, nil
}

// Abort discards the staged blob, leaving no trace. Safe to call after
// Commit and safe to call more than once.
func (sw *StreamWriter) Abort() error {
	if sw.finished {
		return nil
	}
	sw.finished = true

	_ = sw.file.Close()
	if err := sw.store.fs.Remove(sw.tempPath); err != nil {
		return fmt.Errorf("failed to remove staged blob: %w", err)
	}
	return nil
}
