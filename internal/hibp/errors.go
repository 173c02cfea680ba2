package hibp

import (
	"errors"
	"fmt"
	"net/http"
)

// Lookup errors carried in model.LookupResult.Err.
var (
	// ErrUnauthorized is returned when the API rejects the API key (HTTP 401).
	ErrUnauthorized = errors.New("breach API rejected the API key")

	// ErrRateLimited is returned when HTTP 429 persists after every allowed attempt.
	ErrRateLimited = errors.New("breach API rate limit exceeded")

	// ErrUnexpectedStatus is matched by every *StatusError.
	ErrUnexpectedStatus = errors.New("unexpected breach API status")

	// ErrUnreachable is returned when no HTTP response was received.
	ErrUnreachable = errors.New("breach API unreachable")

	// ErrMalformed is returned when a 200 response body is not a breach list.
	ErrMalformed = errors.New("malformed breach API response")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// StatusError reports an HTTP status the client does not classify.
type StatusError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the beginning of the response body, for diagnostics.
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected breach API status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap lets errors.Is match ErrUnexpectedStatus.
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
