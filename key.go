package fontcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// maxKeyLength bounds derived cache keys so a key is always usable as a
// single filename on common filesystems.
const maxKeyLength = 200

// deriveKey converts a font locator to a filesystem-safe cache key.
// Every character outside [A-Za-z0-9._-] is removed, so the same locator
// always maps to the same key. Keys that would exceed maxKeyLength are
// truncated to a prefix plus a short hash of the full locator, which keeps
// derivation deterministic and distinct locators distinct.
//
// The full locator is sanitized rather than just its final path segment, so
// same-named files served from different hosts or paths get different keys.
func deriveKey(locator string) string {
	var b strings.Builder
	b.Grow(len(locator))

	for i := 0; i < len(locator); i++ {
		c := locator[i]
		switch {
		case c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '.', c == '_', c == '-':
			b.WriteByte(c)
		}
	}

	key := b.String()
	if len(key) <= maxKeyLength {
		return key
	}

	sum := sha256.Sum256([]byte(locator))
	return key[:maxKeyLength-17] + "-" + hex.EncodeToString(sum[:8])
}

// shortName extracts the last path segment of a locator, with any query
// string or fragment stripped. The locator is returned unchanged when it
// contains no slash or the final segment is empty.
//
// Used for log output and extension checks only, never as cache identity.
func shortName(locator string) string {
	trimmed := locator
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}

	i := strings.LastIndex(trimmed, "/")
	if i < 0 || i == len(trimmed)-1 {
		return locator
	}
	return trimmed[i+1:]
}
