package antweb

import (
	"errors"
	"fmt"
)

// ErrFetchFailure matches every failed API request: transport error,
// timeout, non-success status or unparsable response body.
var ErrFetchFailure = errors.New("antweb fetch failure")

// FetchError describes a failed API request.
type FetchError struct {
	// Op is the API operation, "geoSpecimens" or "taxaImages".
	Op string

	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status, or zero if no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFetchFailure.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailure
}
