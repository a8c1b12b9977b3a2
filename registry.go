package fontcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// FontRegistry receives validated font bytes for use by a text rendering
// engine. Implementations bridge the cache to whatever consumes the fonts:
// a UI toolkit, a rasterizer, or a test recorder.
//
// Register is called once per blob with the family name the caller chose.
// A family accumulates members across calls in the order they are
// registered. Implementations must be safe for concurrent use.
type FontRegistry interface {
	Register(ctx context.Context, family string, data []byte) error
}

// MemoryRegistry is an in-process FontRegistry that records registered
// fonts, keeping members in registration order per family. It is the
// default registry on a Client and is handy in tests for asserting what
// was registered.
type MemoryRegistry struct {
	mu       sync.RWMutex
	families map[string][][]byte
}

// NewMemoryRegistry creates an empty in-process registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		families: make(map[string][][]byte),
	}
}

// Register records data under family. Rejects empty family names and empty
// blobs.
func (r *MemoryRegistry) Register(ctx context.Context, family string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if family == "" {
		return fmt.Errorf("font family cannot be empty")
	}
	if len(data) == 0 {
		return fmt.Errorf("font data cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[family] = append(r.families[family], data)
	return nil
}

// Families returns the registered family names in sorted order.
func (r *MemoryRegistry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fonts returns the blobs registered under family in registration order.
// Returns nil when the family is unknown.
func (r *MemoryRegistry) Fonts(family string) [][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fonts := r.families[family]
	if fonts == nil {
		return nil
	}
	out := make([][]byte, len(fonts))
	copy(out, fonts)
	return out
}

// Count returns the number of blobs registered under family.
func (r *MemoryRegistry) Count(family string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.families[family])
}
