// Package apperr holds the error taxonomy shared by the dashboard client,
// the CLI and the reference backend.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork marks transport failures (dial, timeout, reset).
	ErrNetwork = errors.New("network error")
	// ErrUnauthorized marks rejected logins and 401/403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation marks input rejected before it reaches the backend.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks missing resources.
	ErrNotFound = errors.New("not found")
)

// NetworkError reports a transport failure during Op.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// AuthError is returned by login. Message is what the operator sees.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// Is reports 401 and 403 as ErrUnauthorized and 404 as ErrNotFound.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return IsAuthStatus(e.Code)
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	}
	return false
}

// IsAuthStatus reports whether code is an authorization-denied status.
func IsAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
