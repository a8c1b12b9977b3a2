// Package fontcache provides dynamic font caching functionality.
// This file contains domain-specific error types for font cache operations.
package fontcache

import (
	"errors"
	"fmt"
)

// Sentinel errors for the distinct failure modes of font cache operations.
// Each failed operation surfaces exactly one of these in its error chain, so
// callers can branch with errors.Is() instead of parsing messages.
var (
	// ErrInvalidLocator indicates that a font locator is empty or cannot be
	// parsed as a URL. Locators are only validated when an operation needs
	// to fetch, never at construction time.
	ErrInvalidLocator = errors.New("invalid font locator")

	// ErrFetchFailed indicates that a remote fetch did not produce the font
	// bytes. This covers transport failures, timeouts, and non-2xx statuses.
	ErrFetchFailed = errors.New("font fetch failed")

	// ErrUnsupportedFormat indicates that a downloaded blob failed both the
	// extension check and the magic-number check against the registered
	// font formats.
	ErrUnsupportedFormat = errors.New("unsupported font format")

	// ErrMissingFamilyMember indicates that a family load reached a member
	// that was never cached. Family loads are all-or-nothing: a single
	// missing member fails the whole call.
	ErrMissingFamilyMember = errors.New("font family member not cached")

	// ErrRemovalFailed indicates that deleting a cached font failed,
	// including the case where no font was cached under the locator.
	ErrRemovalFailed = errors.New("cached font removal failed")

	// ErrAlreadyLoaded indicates that a Loader's one-shot Load was invoked
	// after a previous call already completed.
	ErrAlreadyLoaded = errors.New("fonts already loaded")

	// ErrRegistrationFailed indicates that the font registry rejected the
	// bytes. A blob can pass format validation and still fail engine-level
	// parsing in the registry.
	ErrRegistrationFailed = errors.New("font registration failed")
)

// FontError provides context about a failed font cache operation.
// It wraps the underlying error with the operation name and the locator
// being processed, and supports errors.Is()/errors.As() through Unwrap.
type FontError struct {
	// Op describes the operation that failed (e.g. "cache", "load", "remove").
	Op string

	// Locator is the font locator being processed when the error occurred.
	Locator string

	// Err is the underlying error, carrying one of the sentinel errors in
	// its chain.
	Err error
}

// Error implements the error interface.
func (e *FontError) Error() string {
	if e.Locator == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
	}
	return fmt.Sprintf("%s %s: %s", e.Op, shortName(e.Locator), e.Err.Error())
}

// Unwrap returns the underlying error so that errors.Is and errors.As can
// inspect the chain.
func (e *FontError) Unwrap() error {
	return e.Err
}

// newFontError wraps err with operation and locator context.
func newFontError(op, locator string, err error) *FontError {
	return &FontError{
		Op:      op,
		Locator: locator,
		Err:     err,
	}
}
