package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"

	platformerrors "github.com/jmgilman/go/errors"
)

// classifyTransportError maps transport-level failures to platform error
// types. Context cancellation passes through unchanged so callers can match
// it with errors.Is.
func classifyTransportError(err error, message string) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return platformerrors.Wrap(err, platformerrors.CodeTimeout, message)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return platformerrors.Wrap(err, platformerrors.CodeTimeout, message)
	}

	return platformerrors.Wrap(err, platformerrors.CodeNetwork, message)
}

// statusError maps non-2xx HTTP status codes to platform error types.
func statusError(status int) error {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return platformerrors.Newf(platformerrors.CodeNotFound,
			"font resource not found (status %d)", status)
	case status == http.StatusUnauthorized:
		return platformerrors.New(platformerrors.CodeUnauthorized, "authentication required")
	case status == http.StatusForbidden:
		return platformerrors.New(platformerrors.CodeForbidden, "access to font resource denied")
	case status == http.StatusRequestTimeout:
		return platformerrors.New(platformerrors.CodeTimeout, "font request timed out")
	case status == http.StatusTooManyRequests:
		return platformerrors.New(platformerrors.CodeRateLimit, "rate limit exceeded")
	case status >= 500:
		return platformerrors.Newf(platformerrors.CodeUnavailable,
			"font server unavailable (status %d)", status)
	default:
		return platformerrors.Newf(platformerrors.CodeNetwork,
			"unexpected status %d fetching font", status)
	}
}
