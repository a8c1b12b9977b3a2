package fontcache

import "time"

// ProgressFunc reports byte-level progress of a streamed fetch. It receives
// the number of bytes received so far and the total announced by the server.
// It is never invoked when the server did not announce a content length, so
// total is always positive.
type ProgressFunc func(current, total int64)

// FamilyProgressFunc reports per-member progress of a family load. It
// receives the completed fraction, the total number of members, and the
// number loaded so far. Unlike byte progress it always fires, since member
// counts are known up front.
type FamilyProgressFunc func(progress float64, totalItems, downloadedItems int)

// CacheStats describes the contents of the font cache at a point in time.
type CacheStats struct {
	// Entries is the number of cached fonts.
	Entries int

	// TotalSize is the total size of all cached fonts in bytes.
	TotalSize int64

	// OldestAccess is the least recent last-access time, nil when the cache
	// is empty.
	OldestAccess *time.Time

	// NewestAccess is the most recent last-access time, nil when the cache
	// is empty.
	NewestAccess *time.Time
}
