package cache

import (
	"errors"
	"time"

	"github.com/opencontainers/go-digest"
)

// Default retention bounds applied when the caller does not supply a policy.
const (
	// DefaultMaxObjects is the default maximum number of cached fonts.
	DefaultMaxObjects = 200

	// DefaultStaleness is the default period after which an unused cached
	// font becomes eligible for eviction.
	DefaultStaleness = 365 * 24 * time.Hour
)

// Sentinel errors returned by the store.
var (
	// ErrEntryNotFound indicates that no blob is cached under the requested key.
	ErrEntryNotFound = errors.New("cache entry not found")

	// ErrCorrupted indicates that a cached blob no longer matches the digest
	// recorded when it was written.
	ErrCorrupted = errors.New("cache entry corrupted")
)

// RetentionPolicy bounds how many cached fonts are kept and for how long an
// unused font survives. The store applies the policy transparently after
// every write; callers never evict directly.
type RetentionPolicy struct {
	// MaxObjects is the maximum number of cached fonts. When a write pushes
	// the count beyond this bound, the least recently accessed entries are
	// evicted until the bound holds.
	MaxObjects int

	// Staleness is the maximum time since last access before an entry is
	// evicted regardless of the object count.
	Staleness time.Duration
}

// DefaultRetentionPolicy returns the policy applied when the caller supplies
// none: at most DefaultMaxObjects fonts, kept for DefaultStaleness.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		MaxObjects: DefaultMaxObjects,
		Staleness:  DefaultStaleness,
	}
}

// normalized returns a copy of the policy with unset fields replaced by the
// defaults, so a partially specified policy is always safe to apply.
func (p RetentionPolicy) normalized() RetentionPolicy {
	if p.MaxObjects <= 0 {
		p.MaxObjects = DefaultMaxObjects
	}
	if p.Staleness <= 0 {
		p.Staleness = DefaultStaleness
	}
	return p
}

// Entry tracks metadata for a single cached font blob.
type Entry struct {
	// Key is the derived cache key the blob is stored under.
	Key string `json:"key"`

	// Locator is the original locator the blob was fetched from. Kept for
	// diagnostics; never used as identity.
	Locator string `json:"locator"`

	// Size is the blob size in bytes.
	Size int64 `json:"size"`

	// Digest is the sha256 digest of the blob contents, computed at write
	// time and checked on read when integrity verification is enabled.
	Digest digest.Digest `json:"digest"`

	// CreatedAt is when the blob was first written.
	CreatedAt time.Time `json:"created_at"`

	// LastAccess is the last time the blob was written or read.
	LastAccess time.Time `json:"last_access"`
}

// Stats provides statistics about the store contents.
type Stats struct {
	// Entries is the number of cached fonts.
	Entries int

	// TotalSize is the total size of all cached fonts in bytes.
	TotalSize int64

	// OldestAccess is the least recent last-access time, nil when empty.
	OldestAccess *time.Time

	// NewestAccess is the most recent last-access time, nil when empty.
	NewestAccess *time.Time
}
