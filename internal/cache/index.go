package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const indexVersion = "1"

// cacheIndex manages the metadata index for all cached fonts.
// It provides thread-safe access to entry metadata with JSON persistence, so
// cached fonts survive process restarts.
type cacheIndex struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
	mu      sync.RWMutex
}

// loadOrCreateIndex loads an existing index from disk or creates a new one.
// A missing index file yields a fresh empty index; a corrupt or
// version-incompatible file is an error.
func loadOrCreateIndex(fs billy.Filesystem, path string) (*cacheIndex, error) {
	if _, err := fs.Stat(path); os.IsNotExist(err) {
		return &cacheIndex{
			Version: indexVersion,
			Entries: make(map[string]*Entry),
		}, nil
	}

	data, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var index cacheIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}

	if index.Version != indexVersion {
		return nil, fmt.Errorf("unsupported index version: %s (expected %s)", index.Version, indexVersion)
	}

	if index.Entries == nil {
		index.Entries = make(map[string]*Entry)
	}

	return &index, nil
}

// save writes the index to disk atomically via write-to-temp + rename.
func (idx *cacheIndex) save(fs billy.Filesystem, path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	tmpPath := path + ".tmp"
	tmpFile, err := fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary index file: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary index file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary index file: %w", err)
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	return nil
}

// get retrieves entry metadata by key. Returns nil if the key is absent.
func (idx *cacheIndex) get(key string) *Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Entries[key]
}

// set stores or updates entry metadata for a key.
func (idx *cacheIndex) set(key string, entry *Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.Entries[key] = entry
}

// delete removes entry metadata by key.
func (idx *cacheIndex) delete(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.Entries, key)
}

// touch updates the last access time for an entry.
func (idx *cacheIndex) touch(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entry, exists := idx.Entries[key]
	if !exists {
		return
	}
	entry.LastAccess = time.Now()
}

// len returns the number of entries.
func (idx *cacheIndex) len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.Entries)
}

// list returns a shallow copy of all entry metadata to avoid concurrent
// modification issues in callers.
func (idx *cacheIndex) list() map[string]*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make(map[string]*Entry, len(idx.Entries))
	for key, entry := range idx.Entries {
		result[key] = entry
	}

	return result
}

// reset replaces all entries with an empty map.
func (idx *cacheIndex) reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.Entries = make(map[string]*Entry)
}
