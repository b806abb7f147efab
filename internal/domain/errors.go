package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInstallationNotFound signals that no installation resolves for the
	// given key; callers must direct the user through the install flow.
	ErrInstallationNotFound = errors.New("installation not found")
	// ErrInstallationInactive indicates the installation exists but was deactivated.
	ErrInstallationInactive = errors.New("installation inactive")
	// ErrDirectoryNotFound signals a missing directory record.
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrInvalidRequest indicates caller input validation errors.
	ErrInvalidRequest = errors.New("invalid request")
)

// ValidationError rejects malformed input before any network call, with a
// machine-readable code for UI consumption.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ProviderError carries the upstream provider's status and raw error body for
// diagnosability. It is never retried automatically.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status=%d", e.Op, e.StatusCode)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TokenExchangeError is returned when the authorization-code exchange fails.
type TokenExchangeError struct{ ProviderError }

// TokenRefreshError is returned when the refresh grant fails. Callers must
// treat it as "installation invalid, re-auth required", not as transient.
type TokenRefreshError struct{ ProviderError }

// LocationConversionError is returned when the Company→Location token
// conversion is rejected by the provider.
type LocationConversionError struct{ ProviderError }

// NewTokenExchangeError builds a TokenExchangeError from an upstream response.
func NewTokenExchangeError(status int, body string, err error) *TokenExchangeError {
	return &TokenExchangeError{ProviderError{Op: "token exchange", StatusCode: status, Body: body, Err: err}}
}

// NewTokenRefreshError builds a TokenRefreshError from an upstream response.
func NewTokenRefreshError(status int, body string, err error) *TokenRefreshError {
	return &TokenRefreshError{ProviderError{Op: "token refresh", StatusCode: status, Body: body, Err: err}}
}

// NewLocationConversionError builds a LocationConversionError from an upstream response.
func NewLocationConversionError(status int, body string, err error) *LocationConversionError {
	return &LocationConversionError{ProviderError{Op: "location token conversion", StatusCode: status, Body: body, Err: err}}
}
