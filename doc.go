// Package fontcache provides on-demand caching of remote font files.
//
// This package fetches binary fonts (TTF, OTF) over HTTP, validates them by
// file extension or magic number, and persists them in a bounded local
// cache so applications load fonts from disk instead of re-downloading.
// Key features:
//   - Content validation by extension or leading magic bytes
//   - Bounded retention (object count and staleness) with LRU eviction
//   - SHA-256 integrity verification on read
//   - Chunked streaming downloads with byte-level progress
//   - Font family loading with all-or-nothing and streaming variants
//   - One-shot Loader facade for load-at-startup flows
//   - Filesystem abstraction for testing and custom storage
//
// Basic usage:
//
//	client, err := fontcache.New()
//	if err != nil {
//	    return err
//	}
//
//	// Download and cache a font
//	data, err := client.CacheFont(ctx, "https://example.com/fonts/roboto.ttf")
//
//	// Later: serve it from the cache and register the family
//	data, ok, err := client.LoadCachedFont(ctx,
//	    "https://example.com/fonts/roboto.ttf", "Roboto")
//
//	// Or let a Loader handle cache-first loading in one call
//	loader, err := fontcache.NewLoader("Roboto", urls)
//	if err != nil {
//	    return err
//	}
//	fonts, err := loader.Load(ctx)
package fontcache
