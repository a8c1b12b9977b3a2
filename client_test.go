package fontcache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient returns a Client backed by an in-memory filesystem.
func newTestClient(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	base := []ClientOption{
		WithFilesystem(memfs.New()),
		WithCacheDir("/cache"),
	}
	client, err := NewWithOptions(append(base, opts...)...)
	require.NoError(t, err)
	return client
}

// newFontServer starts a test server serving the given blobs by URL path
// and counting requests.
func newFontServer(t *testing.T, fonts map[string][]byte) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		blob, ok := fonts[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(blob)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

// ttfBlob returns a fake TrueType font of the given size: the TrueType
// magic followed by deterministic filler.
func ttfBlob(size int) []byte {
	blob := make([]byte, size)
	copy(blob, []byte{0x00, 0x01, 0x00, 0x00, 0x00})
	for i := magicLength; i < size; i++ {
		blob[i] = byte(i % 251)
	}
	return blob
}

// otfBlob returns a fake OpenType font of the given size.
func otfBlob(size int) []byte {
	blob := make([]byte, size)
	copy(blob, []byte{0x4F, 0x54, 0x54, 0x4F, 0x00})
	for i := magicLength; i < size; i++ {
		blob[i] = byte(i % 239)
	}
	return blob
}

// TestNewClient tests creating a client with default options
func TestNewClient(t *testing.T) {
	client := newTestClient(t)
	assert.NotNil(t, client.options)
	assert.NotNil(t, client.store)
	assert.NotNil(t, client.fetcher)
	assert.NotNil(t, client.registry)
	assert.Equal(t, 200, client.policy.MaxObjects)
	assert.Equal(t, 365*24*time.Hour, client.policy.Staleness)
}

// TestNewClient_DefaultCacheDir tests falling back to the user cache
// directory when no cache dir is configured
func TestNewClient_DefaultCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/xdg-cache")

	client, err := NewWithOptions(WithFilesystem(memfs.New()))
	require.NoError(t, err)

	ok, err := client.CanLoadFont(context.Background(), "https://example.com/a.ttf")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestNewClientWithOptions tests creating a client with custom options
func TestNewClientWithOptions(t *testing.T) {
	registry := NewMemoryRegistry()
	client := newTestClient(t,
		WithMaxCacheObjects(10),
		WithStalenessPeriod(time.Hour),
		WithUserAgent("myapp/2.1"),
		WithRegistry(registry),
	)

	assert.Equal(t, 10, client.policy.MaxObjects)
	assert.Equal(t, time.Hour, client.policy.Staleness)
	assert.Equal(t, "myapp/2.1", client.options.UserAgent)
	assert.Same(t, registry, client.Registry())
}

// TestCacheFont tests downloading and caching a font
func TestCacheFont(t *testing.T) {
	ctx := context.Background()
	blob := ttfBlob(2048)
	srv, _ := newFontServer(t, map[string][]byte{"/fonts/roboto.ttf": blob})
	client := newTestClient(t)

	locator := srv.URL + "/fonts/roboto.ttf"

	ok, err := client.CanLoadFont(ctx, locator)
	require.NoError(t, err)
	assert.False(t, ok)

	data, err := client.CacheFont(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, blob, data)

	ok, err = client.CanLoadFont(ctx, locator)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestCacheFont_AlwaysFetches tests that caching the same font twice hits
// the network twice but keeps a single cache entry
func TestCacheFont_AlwaysFetches(t *testing.T) {
	ctx := context.Background()
	srv, requests := newFontServer(t, map[string][]byte{"/a.ttf": ttfBlob(64)})
	client := newTestClient(t)

	_, err := client.CacheFont(ctx, srv.URL+"/a.ttf")
	require.NoError(t, err)
	_, err = client.CacheFont(ctx, srv.URL+"/a.ttf")
	require.NoError(t, err)

	assert.Equal(t, int64(2), requests.Load())
	stats, err := client.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
}

// TestCacheFont_InvalidLocator tests locator validation
func TestCacheFont_InvalidLocator(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	tests := []struct {
		name    string
		locator string
	}{
		{"empty", ""},
		{"unsupported scheme", "ftp://example.com/font.ttf"},
		{"no scheme", "example.com/font.ttf"},
		{"no host", "https:///font.ttf"},
		{"malformed", "://example.com/font.ttf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CacheFont(ctx, tt.locator)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidLocator)

			var fontErr *FontError
			require.ErrorAs(t, err, &fontErr)
			assert.Equal(t, "cache", fontErr.Op)
		})
	}
}

// TestCacheFont_FetchFailure tests that fetch failures surface as
// ErrFetchFailed and persist nothing
func TestCacheFont_FetchFailure(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{})
	client := newTestClient(t)

	locator := srv.URL + "/missing.ttf"
	_, err := client.CacheFont(ctx, locator)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)

	ok, err := client.CanLoadFont(ctx, locator)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestCacheFont_ConnectionRefused tests fetch failure without a server
func TestCacheFont_ConnectionRefused(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{"/a.ttf": ttfBlob(64)})
	locator := srv.URL + "/a.ttf"
	srv.Close()

	client := newTestClient(t)
	_, err := client.CacheFont(ctx, locator)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
}

// TestCacheFont_UnsupportedFormat tests format rejection before anything
// is persisted
func TestCacheFont_UnsupportedFormat(t *testing.T) {
	ctx := context.Background()
	junk := []byte("this is not a font at all, just plain text bytes")
	srv, _ := newFontServer(t, map[string][]byte{
		"/files/data.bin": junk,
		"/files/tiny.bin": {0x00, 0x01},
	})
	client := newTestClient(t)

	t.Run("unknown extension and magic", func(t *testing.T) {
		locator := srv.URL + "/files/data.bin"
		_, err := client.CacheFont(ctx, locator)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)

		ok, err := client.CanLoadFont(ctx, locator)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("blob shorter than magic", func(t *testing.T) {
		_, err := client.CacheFont(ctx, srv.URL+"/files/tiny.bin")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

// TestCacheFont_MagicRescuesUnknownExtension tests that a recognized magic
// number admits a blob served under an unknown extension
func TestCacheFont_MagicRescuesUnknownExtension(t *testing.T) {
	ctx := context.Background()
	blob := otfBlob(512)
	srv, _ := newFontServer(t, map[string][]byte{"/asset.bin": blob})
	client := newTestClient(t)

	data, err := client.CacheFont(ctx, srv.URL+"/asset.bin")
	require.NoError(t, err)
	assert.Equal(t, blob, data)
}

// TestCacheFont_ExtensionAdmitsUnknownMagic tests that a known extension
// admits a blob whose bytes match no magic number
func TestCacheFont_ExtensionAdmitsUnknownMagic(t *testing.T) {
	ctx := context.Background()
	blob := []byte("no magic here but the extension vouches for it")
	srv, _ := newFontServer(t, map[string][]byte{"/fonts/custom.otf": blob})
	client := newTestClient(t)

	data, err := client.CacheFont(ctx, srv.URL+"/fonts/custom.otf")
	require.NoError(t, err)
	assert.Equal(t, blob, data)
}

// TestCacheFont_CustomFormat tests extending the format table
func TestCacheFont_CustomFormat(t *testing.T) {
	ctx := context.Background()
	woff2 := append([]byte{0x77, 0x4F, 0x46, 0x32, 0x00}, []byte("glyph data")...)
	srv, _ := newFontServer(t, map[string][]byte{"/fonts/inter.woff2": woff2})

	t.Run("rejected by default", func(t *testing.T) {
		client := newTestClient(t)
		_, err := client.CacheFont(ctx, srv.URL+"/fonts/inter.woff2")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("accepted when registered", func(t *testing.T) {
		client := newTestClient(t, WithFormats(FormatDescriptor{
			Extension: "woff2",
			Magic:     []byte{0x77, 0x4F, 0x46, 0x32},
		}))
		data, err := client.CacheFont(ctx, srv.URL+"/fonts/inter.woff2")
		require.NoError(t, err)
		assert.Equal(t, woff2, data)
	})
}

// TestCacheFont_PerCallPolicy tests per-call retention overrides
func TestCacheFont_PerCallPolicy(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{
		"/a.ttf": ttfBlob(32),
		"/b.ttf": ttfBlob(32),
	})
	client := newTestClient(t)

	_, err := client.CacheFont(ctx, srv.URL+"/a.ttf")
	require.NoError(t, err)
	_, err = client.CacheFont(ctx, srv.URL+"/b.ttf", WithMaxObjects(1))
	require.NoError(t, err)

	okA, err := client.CanLoadFont(ctx, srv.URL+"/a.ttf")
	require.NoError(t, err)
	assert.False(t, okA, "oldest font should have been evicted")

	okB, err := client.CanLoadFont(ctx, srv.URL+"/b.ttf")
	require.NoError(t, err)
	assert.True(t, okB)
}

// TestCacheFont_SingleFlight tests that concurrent caches of the same
// locator share one fetch
func TestCacheFont_SingleFlight(t *testing.T) {
	ctx := context.Background()
	blob := ttfBlob(1024)

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write(blob)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t)
	locator := srv.URL + "/shared.ttf"

	const callers = 5
	results := make([][]byte, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = client.CacheFont(ctx, locator)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, blob, results[i])
	}
	assert.Equal(t, int64(1), requests.Load())
}

// TestCacheFontStream tests chunked download with persistence at end of
// stream
func TestCacheFontStream(t *testing.T) {
	ctx := context.Background()
	blob := ttfBlob(100 * 1024)
	srv, _ := newFontServer(t, map[string][]byte{"/big.ttf": blob})
	client := newTestClient(t)

	locator := srv.URL + "/big.ttf"
	var yields [][]byte
	for chunk, err := range client.CacheFontStream(ctx, locator) {
		require.NoError(t, err)
		yields = append(yields, append([]byte(nil), chunk...))
	}

	require.GreaterOrEqual(t, len(yields), 2, "expected chunk yields plus the final blob")

	final := yields[len(yields)-1]
	assert.Equal(t, blob, final)

	var joined []byte
	for _, chunk := range yields[:len(yields)-1] {
		joined = append(joined, chunk...)
	}
	assert.Equal(t, blob, joined)

	ok, err := client.CanLoadFont(ctx, locator)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestCacheFontStream_Progress tests byte progress reporting when the
// server announces a content length
func TestCacheFontStream_Progress(t *testing.T) {
	ctx := context.Background()
	blob := ttfBlob(64 * 1024)
	srv, _ := newFontServer(t, map[string][]byte{"/big.ttf": blob})
	client := newTestClient(t)

	var currents []int64
	var totals []int64
	for _, err := range client.CacheFontStream(ctx, srv.URL+"/big.ttf",
		WithProgress(func(current, total int64) {
			currents = append(currents, current)
			totals = append(totals, total)
		}),
	) {
		require.NoError(t, err)
	}

	require.NotEmpty(t, currents)
	for _, total := range totals {
		assert.Equal(t, int64(len(blob)), total)
	}
	assert.Equal(t, int64(len(blob)), currents[len(currents)-1])
}

// TestCacheFontStream_MidStreamFailure tests that an interrupted transfer
// yields an error and persists nothing
func TestCacheFontStream_MidStreamFailure(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write(ttfBlob(128))
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t)
	locator := srv.URL + "/broken.ttf"

	var streamErr error
	for _, err := range client.CacheFontStream(ctx, locator) {
		if err != nil {
			streamErr = err
			break
		}
	}
	require.Error(t, streamErr)
	assert.ErrorIs(t, streamErr, ErrFetchFailed)

	ok, err := client.CanLoadFont(ctx, locator)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestCacheFontStream_InvalidLocator tests up-front validation in the
// streaming path
func TestCacheFontStream_InvalidLocator(t *testing.T) {
	client := newTestClient(t)

	var streamErr error
	for _, err := range client.CacheFontStream(context.Background(), "ftp://example.com/font.ttf") {
		streamErr = err
	}
	assert.ErrorIs(t, streamErr, ErrInvalidLocator)
}

// TestCacheFontStream_UnsupportedFormat tests that format rejection after
// a complete stream persists nothing
func TestCacheFontStream_UnsupportedFormat(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{"/data.bin": []byte("definitely not font data")})
	client := newTestClient(t)

	locator := srv.URL + "/data.bin"
	var streamErr error
	for _, err := range client.CacheFontStream(ctx, locator) {
		if err != nil {
			streamErr = err
		}
	}
	require.Error(t, streamErr)
	assert.ErrorIs(t, streamErr, ErrUnsupportedFormat)

	ok, err := client.CanLoadFont(ctx, locator)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestCacheFontStream_ConsumerStops tests that breaking out of the stream
// aborts the download without persisting
func TestCacheFontStream_ConsumerStops(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{"/big.ttf": ttfBlob(256 * 1024)})
	client := newTestClient(t)

	locator := srv.URL + "/big.ttf"
	for _, err := range client.CacheFontStream(ctx, locator) {
		require.NoError(t, err)
		break
	}

	ok, err := client.CanLoadFont(ctx, locator)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestLoadCachedFont tests loading a cached font into a family
func TestLoadCachedFont(t *testing.T) {
	ctx := context.Background()
	blob := ttfBlob(512)
	srv, _ := newFontServer(t, map[string][]byte{"/roboto.ttf": blob})
	client := newTestClient(t)
	locator := srv.URL + "/roboto.ttf"

	t.Run("miss before caching", func(t *testing.T) {
		data, ok, err := client.LoadCachedFont(ctx, locator, "Roboto")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, data)
	})

	_, err := client.CacheFont(ctx, locator)
	require.NoError(t, err)

	t.Run("hit after caching", func(t *testing.T) {
		data, ok, err := client.LoadCachedFont(ctx, locator, "Roboto")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, blob, data)

		registry := client.Registry().(*MemoryRegistry)
		assert.Equal(t, 1, registry.Count("Roboto"))
	})

	t.Run("empty family", func(t *testing.T) {
		_, _, err := client.LoadCachedFont(ctx, locator, "")
		require.Error(t, err)
	})
}

// TestLoadCachedFont_Offline tests serving a cached font after the origin
// has gone away
func TestLoadCachedFont_Offline(t *testing.T) {
	ctx := context.Background()
	blob := ttfBlob(512)
	srv, _ := newFontServer(t, map[string][]byte{"/roboto.ttf": blob})
	client := newTestClient(t)
	locator := srv.URL + "/roboto.ttf"

	_, err := client.CacheFont(ctx, locator)
	require.NoError(t, err)
	srv.Close()

	data, ok, err := client.LoadCachedFont(ctx, locator, "Roboto")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, blob, data)
}

// TestLoadCachedFont_RegistrationFailure tests surfacing registry errors
func TestLoadCachedFont_RegistrationFailure(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{"/a.ttf": ttfBlob(64)})
	client := newTestClient(t, WithRegistry(&failingRegistry{}))
	locator := srv.URL + "/a.ttf"

	_, err := client.CacheFont(ctx, locator)
	require.NoError(t, err)

	_, _, err = client.LoadCachedFont(ctx, locator, "Roboto")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegistrationFailed)
}

// failingRegistry rejects every registration.
type failingRegistry struct{}

func (r *failingRegistry) Register(ctx context.Context, family string, data []byte) error {
	return fmt.Errorf("registry full")
}

// familyFixture caches n fonts and returns their locators and blobs in
// order.
func familyFixture(t *testing.T, client *Client, n int) ([]string, [][]byte) {
	t.Helper()
	ctx := context.Background()

	fonts := make(map[string][]byte, n)
	blobs := make([][]byte, n)
	for i := 0; i < n; i++ {
		blob := ttfBlob(128 + i)
		fonts[fmt.Sprintf("/family/member-%d.ttf", i)] = blob
		blobs[i] = blob
	}
	srv, _ := newFontServer(t, fonts)

	locators := make([]string, n)
	for i := 0; i < n; i++ {
		locators[i] = fmt.Sprintf("%s/family/member-%d.ttf", srv.URL, i)
		_, err := client.CacheFont(ctx, locators[i])
		require.NoError(t, err)
	}
	return locators, blobs
}

// TestLoadCachedFamily tests the all-or-nothing family load
func TestLoadCachedFamily(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	locators, blobs := familyFixture(t, client, 3)

	loaded, err := client.LoadCachedFamily(ctx, locators, "Roboto")
	require.NoError(t, err)
	assert.Equal(t, blobs, loaded)

	registry := client.Registry().(*MemoryRegistry)
	assert.Equal(t, 3, registry.Count("Roboto"))
	assert.Equal(t, blobs, registry.Fonts("Roboto"))
}

// TestLoadCachedFamily_MissingMember tests that one missing member fails
// the whole load and registers nothing
func TestLoadCachedFamily_MissingMember(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	locators, _ := familyFixture(t, client, 2)
	locators = append(locators, "https://example.com/family/member-9.ttf")

	_, err := client.LoadCachedFamily(ctx, locators, "Roboto")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingFamilyMember)
	assert.Contains(t, err.Error(), "member-9.ttf")

	registry := client.Registry().(*MemoryRegistry)
	assert.Equal(t, 0, registry.Count("Roboto"))
}

// TestLoadCachedFamily_Validation tests family load input validation
func TestLoadCachedFamily_Validation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.LoadCachedFamily(ctx, []string{"https://example.com/a.ttf"}, "")
	require.Error(t, err)

	_, err = client.LoadCachedFamily(ctx, nil, "Roboto")
	require.Error(t, err)
}

// TestLoadCachedFamilyStream tests incremental family loading with
// progress fractions
func TestLoadCachedFamilyStream(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	locators, blobs := familyFixture(t, client, 4)

	var loaded [][]byte
	var fractions []float64
	var counts []int
	for data, err := range client.LoadCachedFamilyStream(ctx, locators, "Roboto",
		WithFamilyProgress(func(progress float64, totalItems, downloadedItems int) {
			fractions = append(fractions, progress)
			counts = append(counts, downloadedItems)
			assert.Equal(t, 4, totalItems)
		}),
	) {
		require.NoError(t, err)
		loaded = append(loaded, data)
	}

	assert.Equal(t, blobs, loaded)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1.0}, fractions)
	assert.Equal(t, []int{1, 2, 3, 4}, counts)

	registry := client.Registry().(*MemoryRegistry)
	assert.Equal(t, 4, registry.Count("Roboto"))
}

// TestLoadCachedFamilyStream_MissingMember tests that the stream stops at
// the first missing member and keeps earlier registrations
func TestLoadCachedFamilyStream_MissingMember(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	locators, blobs := familyFixture(t, client, 2)
	locators = []string{locators[0], "https://example.com/gone.ttf", locators[1]}

	var loaded [][]byte
	var streamErr error
	for data, err := range client.LoadCachedFamilyStream(ctx, locators, "Roboto") {
		if err != nil {
			streamErr = err
			break
		}
		loaded = append(loaded, data)
	}

	require.Error(t, streamErr)
	assert.ErrorIs(t, streamErr, ErrMissingFamilyMember)
	require.Len(t, loaded, 1)
	assert.Equal(t, blobs[0], loaded[0])

	registry := client.Registry().(*MemoryRegistry)
	assert.Equal(t, 1, registry.Count("Roboto"), "members before the failure stay registered")
}

// TestLoadCachedFamilyStream_EarlyBreak tests that the consumer can stop
// the stream cleanly
func TestLoadCachedFamilyStream_EarlyBreak(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	locators, _ := familyFixture(t, client, 3)

	yields := 0
	for _, err := range client.LoadCachedFamilyStream(ctx, locators, "Roboto") {
		require.NoError(t, err)
		yields++
		break
	}

	assert.Equal(t, 1, yields)
	registry := client.Registry().(*MemoryRegistry)
	assert.Equal(t, 1, registry.Count("Roboto"))
}

// TestRemoveCachedFont tests removing a cached font
func TestRemoveCachedFont(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{"/a.ttf": ttfBlob(64)})
	client := newTestClient(t)
	locator := srv.URL + "/a.ttf"

	_, err := client.CacheFont(ctx, locator)
	require.NoError(t, err)

	require.NoError(t, client.RemoveCachedFont(ctx, locator))

	ok, err := client.CanLoadFont(ctx, locator)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestRemoveCachedFont_Missing tests that removing an uncached font fails
func TestRemoveCachedFont_Missing(t *testing.T) {
	client := newTestClient(t)

	err := client.RemoveCachedFont(context.Background(), "https://example.com/never-cached.ttf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemovalFailed)

	var fontErr *FontError
	require.ErrorAs(t, err, &fontErr)
	assert.Equal(t, "remove", fontErr.Op)
}

// TestClear tests wiping the cache
func TestClear(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{
		"/a.ttf": ttfBlob(64),
		"/b.otf": otfBlob(64),
	})
	client := newTestClient(t)

	_, err := client.CacheFont(ctx, srv.URL+"/a.ttf")
	require.NoError(t, err)
	_, err = client.CacheFont(ctx, srv.URL+"/b.otf")
	require.NoError(t, err)

	require.NoError(t, client.Clear(ctx))

	stats, err := client.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)

	ok, err := client.CanLoadFont(ctx, srv.URL+"/a.ttf")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestStats tests cache statistics
func TestStats(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{
		"/a.ttf": ttfBlob(100),
		"/b.ttf": ttfBlob(250),
	})
	client := newTestClient(t)

	stats, err := client.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
	assert.Nil(t, stats.OldestAccess)

	_, err = client.CacheFont(ctx, srv.URL+"/a.ttf")
	require.NoError(t, err)
	_, err = client.CacheFont(ctx, srv.URL+"/b.ttf")
	require.NoError(t, err)

	stats, err = client.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(350), stats.TotalSize)
	require.NotNil(t, stats.OldestAccess)
	require.NotNil(t, stats.NewestAccess)
	assert.False(t, stats.NewestAccess.Before(*stats.OldestAccess))
}

// TestPrune tests on-demand pruning of stale fonts
func TestPrune(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{
		"/a.ttf": ttfBlob(64),
		"/b.ttf": ttfBlob(64),
	})

	t.Run("nothing stale", func(t *testing.T) {
		client := newTestClient(t)
		_, err := client.CacheFont(ctx, srv.URL+"/a.ttf")
		require.NoError(t, err)

		pruned, err := client.Prune(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, pruned)
	})

	t.Run("evicts stale fonts", func(t *testing.T) {
		client := newTestClient(t, WithStalenessPeriod(200*time.Millisecond))
		_, err := client.CacheFont(ctx, srv.URL+"/a.ttf")
		require.NoError(t, err)
		_, err = client.CacheFont(ctx, srv.URL+"/b.ttf")
		require.NoError(t, err)

		time.Sleep(300 * time.Millisecond)

		pruned, err := client.Prune(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, pruned)

		stats, err := client.Stats()
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Entries)
	})
}

// TestStartGC tests the background collector lifecycle
func TestStartGC(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFontServer(t, map[string][]byte{"/a.ttf": ttfBlob(64)})
	client := newTestClient(t, WithStalenessPeriod(50*time.Millisecond))

	_, err := client.CacheFont(ctx, srv.URL+"/a.ttf")
	require.NoError(t, err)

	stop := client.StartGC(25 * time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	stop()
	stop()

	stats, err := client.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
}

// TestKeyIsolation tests that locators differing only in query or fragment
// cache under distinct keys
func TestKeyIsolation(t *testing.T) {
	ctx := context.Background()
	blobA := ttfBlob(64)
	blobB := otfBlob(64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery == "v=2" {
			_, _ = w.Write(blobB)
			return
		}
		_, _ = w.Write(blobA)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t)

	_, err := client.CacheFont(ctx, srv.URL+"/font.ttf")
	require.NoError(t, err)
	_, err = client.CacheFont(ctx, srv.URL+"/font.ttf?v=2")
	require.NoError(t, err)

	stats, err := client.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)

	data, ok, err := client.LoadCachedFont(ctx, srv.URL+"/font.ttf?v=2", "Versioned")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, blobB, data)
}
