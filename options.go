// Package fontcache provides dynamic font caching functionality.
// This file contains functional options for configuration.
package fontcache

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/jmgilman/go/fontcache/internal/cache"
)

// ClientOptions contains configuration options for the Client.
type ClientOptions struct {
	// CacheDir is the directory fonts are cached under.
	// If empty, a "fontcache" directory under the user cache directory is used.
	CacheDir string

	// FS provides filesystem operations for the store.
	// If nil, the local filesystem is used.
	FS billy.Filesystem

	// Logger receives structured log records for cache and fetch events.
	// If nil, logging is off.
	Logger *slog.Logger

	// MaxCacheObjects bounds how many fonts the cache keeps. When a write
	// pushes the count beyond the bound, the least recently used entries are
	// evicted. Zero means the default of 200.
	MaxCacheObjects int

	// StalenessPeriod is how long an unused cached font survives before it
	// becomes eligible for eviction. Zero means the default of 365 days.
	StalenessPeriod time.Duration

	// HTTPClient is used for font fetches.
	// If nil, a client with pooled connections and a 30s timeout is used.
	HTTPClient *http.Client

	// UserAgent overrides the User-Agent header sent with font fetches.
	UserAgent string

	// Formats registers additional font format descriptors beyond the
	// TrueType and OpenType defaults. An extra descriptor with an extension
	// matching a default overrides the default entry.
	Formats []FormatDescriptor

	// Registry receives validated font bytes on load operations.
	// If nil, an in-process MemoryRegistry is used.
	Registry FontRegistry

	// VerifyIntegrity controls whether cached blobs are checked against
	// their recorded content digest when read back. Enabled by default.
	VerifyIntegrity bool
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*ClientOptions)

// DefaultClientOptions returns the default client options: cache directory
// under the user cache directory, logging off, retention bounds of 200
// objects and 365 days, and integrity verification enabled.
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		MaxCacheObjects: cache.DefaultMaxObjects,
		StalenessPeriod: cache.DefaultStaleness,
		VerifyIntegrity: true,
	}
}

// WithCacheDir sets the directory fonts are cached under.
func WithCacheDir(dir string) ClientOption {
	return func(opts *ClientOptions) {
		opts.CacheDir = dir
	}
}

// WithFilesystem injects a custom filesystem implementation for the store.
// Useful for tests:
//
//	client, err := fontcache.NewWithOptions(
//	    fontcache.WithCacheDir("/cache"),
//	    fontcache.WithFilesystem(memfs.New()),
//	)
func WithFilesystem(fs billy.Filesystem) ClientOption {
	return func(opts *ClientOptions) {
		opts.FS = fs
	}
}

// WithLogger injects a logger for cache and fetch events. Logging is off
// until a logger is injected; there is no global verbosity switch.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

// WithMaxCacheObjects bounds how many fonts the cache keeps.
func WithMaxCacheObjects(maxObjects int) ClientOption {
	return func(opts *ClientOptions) {
		opts.MaxCacheObjects = maxObjects
	}
}

// WithStalenessPeriod sets how long an unused cached font survives before it
// becomes eligible for eviction.
func WithStalenessPeriod(period time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.StalenessPeriod = period
	}
}

// WithHTTPClient replaces the HTTP client used for font fetches.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// WithUserAgent overrides the User-Agent header sent with font fetches.
func WithUserAgent(userAgent string) ClientOption {
	return func(opts *ClientOptions) {
		opts.UserAgent = userAgent
	}
}

// WithFormats registers additional font format descriptors beyond the
// TrueType and OpenType defaults.
//
// Example:
//
//	client, err := fontcache.NewWithOptions(
//	    fontcache.WithFormats(fontcache.FormatDescriptor{
//	        Extension: "woff2",
//	        Magic:     []byte{0x77, 0x4F, 0x46, 0x32, 0x00},
//	    }),
//	)
func WithFormats(formats ...FormatDescriptor) ClientOption {
	return func(opts *ClientOptions) {
		opts.Formats = append(opts.Formats, formats...)
	}
}

// WithRegistry injects the FontRegistry that receives validated font bytes
// on load operations.
func WithRegistry(registry FontRegistry) ClientOption {
	return func(opts *ClientOptions) {
		opts.Registry = registry
	}
}

// WithVerifyIntegrity controls whether cached blobs are checked against
// their recorded content digest when read back.
func WithVerifyIntegrity(verify bool) ClientOption {
	return func(opts *ClientOptions) {
		opts.VerifyIntegrity = verify
	}
}

// CacheOptions contains options for a single CacheFont or CacheFontStream
// call.
type CacheOptions struct {
	// MaxObjects overrides the client's object bound for this write only.
	// Zero keeps the client's bound.
	MaxObjects int

	// Staleness overrides the client's staleness period for this write only.
	// Zero keeps the client's period.
	Staleness time.Duration

	// Progress receives byte-level progress during CacheFontStream. Only
	// invoked when the server announced a content length. Ignored by
	// CacheFont.
	Progress ProgressFunc
}

// CacheOption is a functional option for configuring a single cache
// operation.
type CacheOption func(*CacheOptions)

// DefaultCacheOptions returns the default per-call cache options, which
// defer entirely to the client configuration.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{}
}

// WithMaxObjects overrides the client's object bound for this write only.
func WithMaxObjects(maxObjects int) CacheOption {
	return func(opts *CacheOptions) {
		opts.MaxObjects = maxObjects
	}
}

// WithStaleness overrides the client's staleness period for this write only.
func WithStaleness(staleness time.Duration) CacheOption {
	return func(opts *CacheOptions) {
		opts.Staleness = staleness
	}
}

// WithProgress sets a callback for byte-level progress during
// CacheFontStream.
func WithProgress(progress ProgressFunc) CacheOption {
	return func(opts *CacheOptions) {
		opts.Progress = progress
	}
}

// resolvePolicy merges the per-call overrides onto the client's retention
// policy.
func (o *CacheOptions) resolvePolicy(base cache.RetentionPolicy) cache.RetentionPolicy {
	if o.MaxObjects > 0 {
		base.MaxObjects = o.MaxObjects
	}
	if o.Staleness > 0 {
		base.Staleness = o.Staleness
	}
	return base
}

// LoadOptions contains options for a single family load operation.
type LoadOptions struct {
	// FamilyProgress receives per-member progress during
	// LoadCachedFamilyStream.
	FamilyProgress FamilyProgressFunc
}

// LoadOption is a functional option for configuring a single family load
// operation.
type LoadOption func(*LoadOptions)

// DefaultLoadOptions returns the default family load options.
func DefaultLoadOptions() *LoadOptions {
	return &LoadOptions{}
}

// WithFamilyProgress sets a callback for per-member progress during
// LoadCachedFamilyStream.
func WithFamilyProgress(progress FamilyProgressFunc) LoadOption {
	return func(opts *LoadOptions) {
		opts.FamilyProgress = progress
	}
}

// LoaderOptions contains configuration options for a Loader.
type LoaderOptions struct {
	// Client is a shared cache client. If nil, the loader builds its own
	// from the remaining options.
	Client *Client

	// MaxObjects bounds the owned client's cache size. Ignored when Client
	// is set.
	MaxObjects int

	// Staleness sets the owned client's staleness period. Ignored when
	// Client is set.
	Staleness time.Duration

	// Registry receives the loaded fonts. Ignored when Client is set.
	Registry FontRegistry

	// Logger receives structured log records. Ignored when Client is set.
	Logger *slog.Logger
}

// LoaderOption is a functional option for configuring a Loader.
type LoaderOption func(*LoaderOptions)

// DefaultLoaderOptions returns the default loader options.
func DefaultLoaderOptions() *LoaderOptions {
	return &LoaderOptions{}
}

// WithClient makes the loader use a shared cache client instead of building
// its own. The remaining loader options are ignored when a client is
// injected, since they only configure an owned client.
func WithClient(client *Client) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.Client = client
	}
}

// WithLoaderMaxObjects bounds the owned client's cache size.
func WithLoaderMaxObjects(maxObjects int) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.MaxObjects = maxObjects
	}
}

// WithLoaderStaleness sets the owned client's staleness period.
func WithLoaderStaleness(staleness time.Duration) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.Staleness = staleness
	}
}

// WithLoaderRegistry sets the FontRegistry the owned client registers
// loaded fonts with.
func WithLoaderRegistry(registry FontRegistry) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.Registry = registry
	}
}

// WithLoaderLogger injects a logger into the owned client.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.Logger = logger
	}
}
