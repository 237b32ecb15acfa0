package retry

import (
	"errors"
	"strings"
)

// Common errors returned by the retry controller.
var (
	// ErrRetryExhausted is returned when all attempts failed with a
	// transient error. It wraps the last error.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends between attempts.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrDetached marks a navigation that failed because the rendering
	// frame went away mid-load. Browser adapters wrap it.
	ErrDetached = errors.New("frame detached")

	// ErrNoCards signals that a page rendered without any listing card.
	ErrNoCards = errors.New("no cards found")
)

// IsDetached reports whether err is a detached-frame navigation failure,
// either wrapping ErrDetached or carrying the "detached" signature the
// browser reports.
func IsDetached(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDetached) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "detached")
}

// IsNoCards reports whether err is an empty-page result.
func IsNoCards(err error) bool {
	return errors.Is(err, ErrNoCards)
}
