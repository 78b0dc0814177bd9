package helius

import (
	"errors"
	"fmt"
)

// Sentinel errors for the enhanced-transactions API.
var (
	// ErrCursorInvalid means the provider rejected the before cursor.
	// Callers may clear the cursor and retry the same page once.
	ErrCursorInvalid = errors.New("invalid before cursor")

	// ErrUnauthorized means the API key was rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited means the provider returned 429.
	ErrRateLimited = errors.New("rate limited")
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Hint       string
	sentinel   error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("helius: status %d: %s", e.StatusCode, e.Message)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap exposes the sentinel classification, if any.
func (e *APIError) Unwrap() error {
	return e.sentinel
}

// IsRetryable reports whether err is a transient upstream failure. An APIError
// is retryable only for 429 and any 5xx; every error that is not an APIError
// (network failures, timeouts, and also read or decode failures) counts as
// retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// Network errors, timeouts, closed connections.
	return true
}
