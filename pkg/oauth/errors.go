package oauth

import (
	"errors"
	"fmt"
)

// invalidGrant is the RFC 6749 error code a provider returns when a refresh
// token has been revoked or rotated away. It is the only refresh failure that
// destroys session state.
const invalidGrant = "invalid_grant"

// ConfigurationError indicates a bad or unreachable discovery document.
// It is never retried automatically; the UI must prompt the user to retry.
type ConfigurationError struct {
	Provider string
	Cause    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s configuration error: %v", e.Provider, e.Cause)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// AuthorizationError indicates the user denied consent or the provider
// redirect carried an error. It terminates the attempt without touching any
// existing session.
type AuthorizationError struct {
	Provider    string
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

// TokenExchangeError indicates a non-2xx response to an
// authorization-code exchange. Code and Description carry the provider's
// error/error_description fields when they were parseable.
type TokenExchangeError struct {
	Status      int
	Code        string
	Description string
}

func (e *TokenExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token exchange failed (HTTP %d): %s: %s", e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("token exchange failed (HTTP %d)", e.Status)
}

// RefreshError indicates a failed refresh-token grant. InvalidGrant
// classifies whether the failure is terminal for the session.
type RefreshError struct {
	Status      int
	Code        string
	Description string
	Cause       error
}

func (e *RefreshError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("token refresh failed: %v", e.Cause)
	}
	if e.Code != "" {
		return fmt.Sprintf("token refresh failed (HTTP %d): %s: %s", e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("token refresh failed (HTTP %d)", e.Status)
}

func (e *RefreshError) Unwrap() error { return e.Cause }

// InvalidGrant reports whether the provider rejected the refresh token
// itself, meaning the stored token is unusable and the session must end.
func (e *RefreshError) InvalidGrant() bool {
	return e.Code == invalidGrant
}

// StorageError indicates a secure-store read/write failure. It is logged and
// surfaced as a warning but never blocks the in-memory session.
type StorageError struct {
	Op       string
	Provider string
	Cause    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("secure storage %s failed for provider %s: %v", e.Op, e.Provider, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// IsInvalidGrant reports whether err wraps a RefreshError classified as
// invalid_grant.
func IsInvalidGrant(err error) bool {
	var re *RefreshError
	return errors.As(err, &re) && re.InvalidGrant()
}
