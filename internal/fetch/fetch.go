// Package fetch retrieves font blobs over HTTP. It classifies failures as
// platform errors so callers can distinguish bad locators from unreachable
// hosts, missing resources, and interrupted transfers.
package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
)

// readBufferSize is the chunk size used when draining response bodies.
const readBufferSize = 32 * 1024

// ProgressFunc reports transfer progress. It receives the number of bytes
// received so far and the total expected. It is only invoked when the server
// announced a content length.
type ProgressFunc func(current, total int64)

// SinkFunc receives each chunk as it arrives. The chunk is only valid for
// the duration of the call. Returning an error aborts the transfer and the
// error is returned to the caller unchanged.
type SinkFunc func(chunk []byte) error

// Fetcher downloads font blobs over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// New creates a fetcher with sensible connection defaults. Pass options to
// override the HTTP client or the User-Agent header.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: "fontcache",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Buffered downloads the resource at rawURL and returns the whole body.
func (f *Fetcher) Buffered(ctx context.Context, rawURL string) ([]byte, error) {
	return f.Streamed(ctx, rawURL, nil, nil)
}

// Streamed downloads the resource at rawURL, forwarding each chunk to sink
// as it arrives, and returns the accumulated body once the stream ends.
// Progress is reported after every chunk, but only when the server announced
// a content length. Both sink and progress may be nil.
func (f *Fetcher) Streamed(ctx context.Context, rawURL string, sink SinkFunc, progress ProgressFunc) ([]byte, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	total := resp.ContentLength

	var body bytes.Buffer
	if total > 0 {
		body.Grow(int(total))
	}

	buf := make([]byte, readBufferSize)
	var current int64
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			body.Write(chunk)
			current += int64(n)

			if sink != nil {
				if sinkErr := sink(chunk); sinkErr != nil {
					return nil, sinkErr
				}
			}
			if progress != nil && total >= 0 {
				progress(current, total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyTransportError(err, "font stream interrupted")
		}
	}

	return body.Bytes(), nil
}

// get validates the locator, issues the request, and rejects non-2xx
// responses. The caller owns the response body on success.
func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "invalid font locator")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, platformerrors.Newf(platformerrors.CodeInvalidInput,
			"unsupported locator scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, platformerrors.New(platformerrors.CodeInvalidInput, "font locator has no host")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "invalid font locator")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, "font fetch failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, statusError(resp.StatusCode)
	}
	return resp, nil
}
