package bookchat

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrUnauthorized indicates the backend rejected the bearer credential.
	ErrUnauthorized = errors.New("bookchat: unauthorized")

	// ErrNoBody indicates a successful status arrived without a readable body.
	ErrNoBody = errors.New("bookchat: response has no body")

	// ErrInvalidRequest indicates the request parameters are invalid.
	ErrInvalidRequest = errors.New("bookchat: invalid request")

	// ErrInvalidResponse indicates the backend answered with an unexpected JSON shape.
	ErrInvalidResponse = errors.New("bookchat: invalid response")

	// ErrRateLimited indicates the backend's rate limit has been exceeded.
	ErrRateLimited = errors.New("bookchat: rate limit exceeded")

	// ErrBackendUnavailable indicates the backend is down or failing.
	ErrBackendUnavailable = errors.New("bookchat: backend unavailable")
)

// TransportError represents a request that failed before any content was streamed:
// a non-success HTTP status or a missing body.
type TransportError struct {
	Route      string // The backend route that was called
	StatusCode int    // HTTP status code
	Status     string // HTTP status line text
	Body       string // Error body text, if any could be read
	Retryable  bool   // Whether this error is potentially retryable
	Err        error  // Wrapped sentinel error (ErrUnauthorized, ErrRateLimited, etc.)
}

func (e *TransportError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("bad response %d from %s: %s", e.StatusCode, e.Route, e.Body)
	}
	return fmt.Sprintf("bad response %d from %s: %s", e.StatusCode, e.Route, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError represents an invalid request descriptor.
type ValidationError struct {
	Field  string // The field that failed validation
	Value  any    // The invalid value
	Reason string // Human-readable explanation
	Err    error  // Wrapped error (usually ErrInvalidRequest)
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed for '%s' (value: %v): %s (%v)", e.Field, e.Value, e.Reason, e.Err)
	}
	return fmt.Sprintf("validation failed for '%s' (value: %v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// newTransportError maps an HTTP status to a TransportError with the matching sentinel.
func newTransportError(route string, resp *http.Response, body string) *TransportError {
	te := &TransportError{
		Route:      route,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		te.Err = ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		te.Err = ErrRateLimited
		te.Retryable = true
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		te.Err = ErrInvalidRequest
	case resp.StatusCode >= 500:
		te.Err = ErrBackendUnavailable
		te.Retryable = true
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		te.Err = ErrNoBody
	}
	return te
}

// IsRetryable checks if an error is potentially retryable.
// Returns true for rate limits and backend failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Retryable
	}

	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrBackendUnavailable)
}

// IsAuthError checks if an error is related to authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrUnauthorized) {
		return true
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode == http.StatusUnauthorized || transportErr.StatusCode == http.StatusForbidden
	}

	return false
}

// IsInvalidRequest checks if an error indicates an invalid request descriptor.
func IsInvalidRequest(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidRequest) {
		return true
	}

	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// StatusCode extracts the HTTP status carried by err, or 0 if there is none.
func StatusCode(err error) int {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode
	}
	return 0
}
