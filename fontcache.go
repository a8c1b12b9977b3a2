// Package fontcache provides dynamic font caching functionality.
// This file contains the main client interface and implementation.
package fontcache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"golang.org/x/sync/singleflight"

	"github.com/jmgilman/go/fontcache/internal/cache"
	"github.com/jmgilman/go/fontcache/internal/fetch"
)

// Client fetches font blobs by URL, validates their format, persists them in
// a local store, and serves them back without re-fetching. The client is
// safe for concurrent use; returned byte slices are shared and must be
// treated as read-only.
type Client struct {
	// options contains the client configuration
	options *ClientOptions

	// store persists cached blobs and applies the retention policy
	store *cache.Store

	// fetcher retrieves font blobs over HTTP
	fetcher *fetch.Fetcher

	// formats is the immutable format registry downloads are validated
	// against
	formats *formatTable

	// registry receives validated font bytes on load operations
	registry FontRegistry

	// logger receives structured cache and fetch events
	logger *cache.Logger

	// policy is the client-wide retention policy, merged with per-call
	// overrides
	policy cache.RetentionPolicy

	// group deduplicates concurrent fetches of the same cache key
	group singleflight.Group
}

// errStreamStopped signals that a stream consumer stopped iterating.
var errStreamStopped = errors.New("stream consumer stopped")

// New creates a new Client with default configuration: fonts cached under
// the user cache directory, logging off, and the default retention bounds.
func New() (*Client, error) {
	return NewWithOptions()
}

// NewWithOptions creates a new Client with custom configuration.
// It accepts functional options to customize the cache directory, retention
// bounds, logging, and other behaviors.
//
// Example usage:
//
//	client, err := fontcache.NewWithOptions(
//	    fontcache.WithCacheDir("/var/cache/fonts"),
//	    fontcache.WithMaxCacheObjects(50),
//	)
//	if err != nil {
//	    return err
//	}
func NewWithOptions(opts ...ClientOption) (*Client, error) {
	options := DefaultClientOptions()

	// Apply functional options
	for _, opt := range opts {
		opt(options)
	}

	cacheDir := options.CacheDir
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user cache directory: %w", err)
		}
		cacheDir = filepath.Join(base, "fontcache")
	}

	logger := cache.NewLogger(options.Logger)

	policy := cache.RetentionPolicy{
		MaxObjects: options.MaxCacheObjects,
		Staleness:  options.StalenessPeriod,
	}
	if policy.MaxObjects <= 0 {
		policy.MaxObjects = cache.DefaultMaxObjects
	}
	if policy.Staleness <= 0 {
		policy.Staleness = cache.DefaultStaleness
	}

	storeOpts := []cache.StoreOption{
		cache.WithLogger(logger),
		cache.WithRetentionPolicy(policy),
		cache.WithVerifyOnRead(options.VerifyIntegrity),
	}
	if options.FS != nil {
		storeOpts = append(storeOpts, cache.WithFilesystem(options.FS))
	}

	store, err := cache.NewStore(cacheDir, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize font store: %w", err)
	}

	var fetchOpts []fetch.Option
	if options.HTTPClient != nil {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(options.HTTPClient))
	}
	if options.UserAgent != "" {
		fetchOpts = append(fetchOpts, fetch.WithUserAgent(options.UserAgent))
	}

	registry := options.Registry
	if registry == nil {
		registry = NewMemoryRegistry()
	}

	return &Client{
		options:  options,
		store:    store,
		fetcher:  fetch.New(fetchOpts...),
		formats:  newFormatTable(options.Formats...),
		registry: registry,
		logger:   logger,
		policy:   policy,
	}, nil
}

// Registry returns the FontRegistry loads register fonts with. When no
// registry was injected this is the client's own MemoryRegistry.
func (c *Client) Registry() FontRegistry {
	return c.registry
}

// CacheFont downloads the font at locator, validates its format, persists
// it, and returns the bytes. Concurrent calls for the same locator share a
// single fetch; the first caller's context governs the shared attempt.
//
// The locator is validated up front (ErrInvalidLocator), fetch failures
// surface as ErrFetchFailed, and a blob failing both the extension and
// magic-number checks surfaces as ErrUnsupportedFormat. Nothing is persisted
// on any failure. The client never retries.
func (c *Client) CacheFont(ctx context.Context, locator string, opts ...CacheOption) ([]byte, error) {
	cacheOpts := DefaultCacheOptions()
	for _, opt := range opts {
		opt(cacheOpts)
	}

	if err := validateLocator(locator); err != nil {
		return nil, newFontError("cache", locator, err)
	}

	key := deriveKey(locator)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetchAndStore(ctx, key, locator, cacheOpts)
	})
	if err != nil {
		return nil, newFontError("cache", locator, err)
	}
	return v.([]byte), nil
}

// CacheFontStream downloads the font at locator, yielding each chunk as it
// arrives. After a clean end of stream the accumulated blob is validated
// and persisted exactly once, then yielded as the final item, so a consumer
// keeping only the last yielded value holds the complete font.
//
// A mid-stream failure yields the error and stops without persisting
// anything. Breaking out of the loop aborts the underlying fetch, also
// without persisting. Yielded chunks are only valid until the next
// iteration step; the final blob is stable.
//
// Byte progress goes to the WithProgress callback when the server announced
// a content length. Each range over the sequence performs a fresh fetch, so
// iterate once.
//
// Example:
//
//	var font []byte
//	for chunk, err := range client.CacheFontStream(ctx, url) {
//	    if err != nil {
//	        return err
//	    }
//	    font = chunk
//	}
func (c *Client) CacheFontStream(ctx context.Context, locator string, opts ...CacheOption) iter.Seq2[[]byte, error] {
	cacheOpts := DefaultCacheOptions()
	for _, opt := range opts {
		opt(cacheOpts)
	}

	return func(yield func([]byte, error) bool) {
		if err := validateLocator(locator); err != nil {
			yield(nil, newFontError("cache", locator, err))
			return
		}
		key := deriveKey(locator)

		stopped := false
		sink := func(chunk []byte) error {
			if !yield(chunk, nil) {
				stopped = true
				return errStreamStopped
			}
			return nil
		}
		var progress fetch.ProgressFunc
		if cacheOpts.Progress != nil {
			progress = fetch.ProgressFunc(cacheOpts.Progress)
		}

		blob, err := c.fetcher.Streamed(ctx, locator, sink, progress)
		if stopped {
			return
		}
		if err != nil {
			yield(nil, newFontError("cache", locator, mapFetchError(err)))
			return
		}

		if err := c.formats.validate(shortName(locator), blob); err != nil {
			yield(nil, newFontError("cache", locator, err))
			return
		}
		entry, err := c.store.Write(ctx, key, locator, blob, cacheOpts.resolvePolicy(c.policy))
		if err != nil {
			yield(nil, newFontError("cache", locator, fmt.Errorf("failed to persist font: %w", err)))
			return
		}

		c.logger.Info(ctx, "font cached",
			"font", shortName(locator),
			"key", key,
			"size", entry.Size)
		yield(blob, nil)
	}
}

// CanLoadFont reports whether the font at locator is cached. It only checks
// the local store and never touches the network.
func (c *Client) CanLoadFont(ctx context.Context, locator string) (bool, error) {
	ok, err := c.store.Exists(ctx, deriveKey(locator))
	if err != nil {
		return false, newFontError("check", locator, err)
	}
	return ok, nil
}

// LoadCachedFont reads the font at locator from the cache and registers it
// under family. Returns (data, true, nil) on a hit and (nil, false, nil) on
// a miss; the caller decides whether a miss warrants a fetch. A registry
// rejection surfaces as ErrRegistrationFailed.
func (c *Client) LoadCachedFont(ctx context.Context, locator, family string) ([]byte, bool, error) {
	if family == "" {
		return nil, false, newFontError("load", locator, fmt.Errorf("font family cannot be empty"))
	}

	data, err := c.store.Read(ctx, deriveKey(locator))
	if err != nil {
		if errors.Is(err, cache.ErrEntryNotFound) {
			return nil, false, nil
		}
		return nil, false, newFontError("load", locator, err)
	}

	if err := c.registry.Register(ctx, family, data); err != nil {
		return nil, false, newFontError("load", locator,
			fmt.Errorf("%w: %w", ErrRegistrationFailed, err))
	}

	c.logger.Debug(ctx, "cached font loaded",
		"font", shortName(locator),
		"family", family)
	return data, true, nil
}

// LoadCachedFamily reads every member of a font family from the cache and
// registers them under the single family name, in input order. The load is
// all-or-nothing: every member's presence is verified before anything is
// registered, and a missing member fails the whole call with
// ErrMissingFamilyMember naming the locator, leaving the registry untouched.
func (c *Client) LoadCachedFamily(ctx context.Context, locators []string, family string) ([][]byte, error) {
	if family == "" {
		return nil, fmt.Errorf("font family cannot be empty")
	}
	if len(locators) == 0 {
		return nil, fmt.Errorf("at least one locator is required")
	}

	// Verify every member up front so a missing one registers nothing.
	for _, locator := range locators {
		ok, err := c.store.Exists(ctx, deriveKey(locator))
		if err != nil {
			return nil, newFontError("load family", locator, err)
		}
		if !ok {
			return nil, newFontError("load family", locator,
				fmt.Errorf("%w: %s", ErrMissingFamilyMember, shortName(locator)))
		}
	}

	blobs := make([][]byte, 0, len(locators))
	for _, locator := range locators {
		data, err := c.store.Read(ctx, deriveKey(locator))
		if err != nil {
			if errors.Is(err, cache.ErrEntryNotFound) {
				err = fmt.Errorf("%w: %s", ErrMissingFamilyMember, shortName(locator))
			}
			return nil, newFontError("load family", locator, err)
		}
		if err := c.registry.Register(ctx, family, data); err != nil {
			return nil, newFontError("load family", locator,
				fmt.Errorf("%w: %w", ErrRegistrationFailed, err))
		}
		blobs = append(blobs, data)
	}

	c.logger.Info(ctx, "font family loaded",
		"family", family,
		"members", len(blobs))
	return blobs, nil
}

// LoadCachedFamilyStream reads and registers family members one at a time
// in input order, yielding each blob immediately after it is registered.
// After each member the WithFamilyProgress callback fires with the
// completed fraction.
//
// Unlike LoadCachedFamily there is no all-or-nothing guarantee: a missing
// member yields ErrMissingFamilyMember at that position and stops, and
// members yielded before the failure stay registered.
//
// Example:
//
//	for data, err := range client.LoadCachedFamilyStream(ctx, urls, "Roboto") {
//	    if err != nil {
//	        return err
//	    }
//	    render(data)
//	}
func (c *Client) LoadCachedFamilyStream(ctx context.Context, locators []string, family string, opts ...LoadOption) iter.Seq2[[]byte, error] {
	loadOpts := DefaultLoadOptions()
	for _, opt := range opts {
		opt(loadOpts)
	}

	return func(yield func([]byte, error) bool) {
		if family == "" {
			yield(nil, fmt.Errorf("font family cannot be empty"))
			return
		}
		if len(locators) == 0 {
			yield(nil, fmt.Errorf("at least one locator is required"))
			return
		}

		total := len(locators)
		for i, locator := range locators {
			data, err := c.store.Read(ctx, deriveKey(locator))
			if err != nil {
				if errors.Is(err, cache.ErrEntryNotFound) {
					err = fmt.Errorf("%w: %s", ErrMissingFamilyMember, shortName(locator))
				}
				yield(nil, newFontError("load family", locator, err))
				return
			}
			if err := c.registry.Register(ctx, family, data); err != nil {
				yield(nil, newFontError("load family", locator,
					fmt.Errorf("%w: %w", ErrRegistrationFailed, err)))
				return
			}

			done := i + 1
			if loadOpts.FamilyProgress != nil {
				loadOpts.FamilyProgress(float64(done)/float64(total), total, done)
			}
			if !yield(data, nil) {
				return
			}
		}
	}
}

// RemoveCachedFont deletes the font cached under locator. Every failure,
// including nothing being cached under the locator, surfaces as
// ErrRemovalFailed.
func (c *Client) RemoveCachedFont(ctx context.Context, locator string) error {
	if err := c.store.Delete(ctx, deriveKey(locator)); err != nil {
		return newFontError("remove", locator, fmt.Errorf("%w: %w", ErrRemovalFailed, err))
	}

	c.logger.Debug(ctx, "cached font removed", "font", shortName(locator))
	return nil
}

// Clear removes every cached font and resets the cache metadata.
func (c *Client) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear font cache: %w", err)
	}
	return nil
}

// Prune applies the client's retention policy on demand and returns the
// number of fonts evicted. Writes already prune transparently; manual
// pruning only matters to expire stale entries without writing.
func (c *Client) Prune(ctx context.Context) (int, error) {
	return c.store.Prune(ctx)
}

// Stats returns statistics about the cache contents.
func (c *Client) Stats() (*CacheStats, error) {
	stats, err := c.store.Stats()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return &CacheStats{
		Entries:      stats.Entries,
		TotalSize:    stats.TotalSize,
		OldestAccess: stats.OldestAccess,
		NewestAccess: stats.NewestAccess,
	}, nil
}

// StartGC starts a background garbage collector that periodically applies
// the retention policy. The returned stop function is idempotent and blocks
// until the collector has fully stopped.
func (c *Client) StartGC(interval time.Duration) (stop func()) {
	return c.store.StartGC(interval)
}

// fetchAndStore is the single-flight body of CacheFont: fetch, validate,
// persist, in that order, so nothing is stored on any failure.
func (c *Client) fetchAndStore(ctx context.Context, key, locator string, opts *CacheOptions) ([]byte, error) {
	data, err := c.fetcher.Buffered(ctx, locator)
	if err != nil {
		return nil, mapFetchError(err)
	}

	if err := c.formats.validate(shortName(locator), data); err != nil {
		return nil, err
	}

	entry, err := c.store.Write(ctx, key, locator, data, opts.resolvePolicy(c.policy))
	if err != nil {
		return nil, fmt.Errorf("failed to persist font: %w", err)
	}

	c.logger.Info(ctx, "font cached",
		"font", shortName(locator),
		"key", key,
		"size", entry.Size)
	return data, nil
}

// validateLocator rejects locators that cannot name a remote font, before
// any network or disk work happens.
func validateLocator(locator string) error {
	if locator == "" {
		return fmt.Errorf("%w: locator is empty", ErrInvalidLocator)
	}
	u, err := url.Parse(locator)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidLocator, locator)
	}
	return nil
}

// mapFetchError tags fetch-layer failures with the public sentinels while
// preserving the platform error chain, so callers can branch on the
// sentinels or inspect codes and retryability. Caller cancellation passes
// through unchanged.
func mapFetchError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if platformerrors.GetCode(err) == platformerrors.CodeInvalidInput {
		return fmt.Errorf("%w: %w", ErrInvalidLocator, err)
	}
	return fmt.Errorf("%w: %w", ErrFetchFailed, err)
}
