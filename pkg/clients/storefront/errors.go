package storefront

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when no session is held, or when the
// server invalidates the session mid-flight. No network call is attempted
// in the former case.
var ErrNotAuthenticated = errors.New("storefront: not authenticated")

// NetworkError wraps transport-level failures (timeouts, connectivity).
// These are safe to retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("storefront: %s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError carries a rejection produced by the storefront API itself.
// Reason is the server's human-readable message and is surfaced verbatim.
type ServerError struct {
	Status int
	Reason string
}

func (e *ServerError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("storefront: server rejected request (status %d)", e.Status)
	}
	return fmt.Sprintf("storefront: server rejected request (status %d): %s", e.Status, e.Reason)
}
