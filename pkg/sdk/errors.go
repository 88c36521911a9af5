package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotAuthenticated is returned by operations that need an access token when none is held.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoRefreshToken is the cause of a RefreshExpiredError when the session never had one.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// AuthenticationError reports credentials rejected by the login endpoint.
// It is surfaced to the caller as-is and never retried.
type AuthenticationError struct {
	StatusCode int
	Detail     string
}

func (e *AuthenticationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("authentication failed: %s", e.Detail)
	}
	return fmt.Sprintf("authentication failed (status %d)", e.StatusCode)
}

// RefreshExpiredError reports that the session could not be renewed.
// The session has been logged out by the time a caller sees it.
type RefreshExpiredError struct {
	Cause error
}

func (e *RefreshExpiredError) Error() string {
	if e.Cause == nil {
		return "session expired"
	}
	return "session expired: " + e.Cause.Error()
}

func (e *RefreshExpiredError) Unwrap() error {
	return e.Cause
}

// TransportError wraps network and timeout failures. These never engage the refresh path.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying failure was a timeout.
func (e *TransportError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
	Body       []byte
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsUnauthorized reports whether err is an API response with status 401.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized
}

// IsSessionExpired reports whether err means the session was dropped and the user must log in again.
func IsSessionExpired(err error) bool {
	var expired *RefreshExpiredError
	return errors.As(err, &expired)
}
