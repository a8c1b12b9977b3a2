package cache

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"
)

// Prune applies the store's default retention policy on demand and returns
// the number of entries evicted. Writes already prune transparently, so
// manual pruning is only needed to expire stale entries without writing.
func (s *Store) Prune(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.pruneLocked(ctx, s.policy, "")
	if removed == 0 {
		return 0, nil
	}

	if err := s.index.save(s.fs, s.indexPath); err != nil {
		return removed, fmt.Errorf("failed to save index: %w", err)
	}
	return removed, nil
}

// pruneLocked evicts entries that violate the policy and returns how many
// were removed. Two bounds apply: entries unused longer than Staleness go
// first, then the least recently accessed entries beyond MaxObjects. The
// entry named by keep is exempt from both. The caller must hold s.mu and is
// responsible for saving the index afterward.
func (s *Store) pruneLocked(ctx context.Context, policy RetentionPolicy, keep string) int {
	policy = policy.normalized()
	entries := s.index.list()

	type victim struct {
		key    string
		size   int64
		reason string
	}
	var victims []victim
	marked := make(map[string]bool)

	for key, entry := range entries {
		if key == keep {
			continue
		}
		if time.Since(entry.LastAccess) > policy.Staleness {
			victims = append(victims, victim{key: key, size: entry.Size, reason: "stale"})
			marked[key] = true
		}
	}

	if remaining := len(entries) - len(victims); remaining > policy.MaxObjects {
		type candidate struct {
			key   string
			entry *Entry
		}
		var candidates []candidate
		for key, entry := range entries {
			if key == keep || marked[key] {
				continue
			}
			candidates = append(candidates, candidate{key: key, entry: entry})
		}

		// Oldest last access goes first.
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].entry.LastAccess.Before(candidates[j].entry.LastAccess)
		})

		for _, c := range candidates {
			if remaining <= policy.MaxObjects {
				break
			}
			victims = append(victims, victim{key: c.key, size: c.entry.Size, reason: "max-objects"})
			remaining--
		}
	}

	removed := 0
	for _, v := range victims {
		if err := s.fs.Remove(s.blobPath(v.key)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn(ctx, "failed to remove evicted blob", "key", v.key, "error", err.Error())
			continue
		}
		s.index.delete(v.key)
		LogEviction(ctx, s.logger, v.key, v.size, v.reason)
		removed++
	}

	return removed
}
