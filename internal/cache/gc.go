package cache

import (
	"context"
	"sync"
	"time"
)

// StartGC starts a background garbage collector that periodically prunes the
// store using its retention policy.
//
// Returns a function to stop the garbage collector. The stop function is safe
// to call multiple times and blocks until the GC goroutine has fully stopped.
// It should be called on shutdown or deferred to ensure clean shutdown.
//
// Example:
//
//	stop := store.StartGC(time.Hour)
//	defer stop()
func (s *Store) StartGC(interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Prune(ctx); err != nil {
					s.logger.Warn(ctx, "background prune failed", "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}
