// SPDX-FileCopyrightText: Copyright 2025 Lantern Labs, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package credentials persists token sets, splitting them between the OS
// secret store (refresh tokens only) and volatile in-memory session state
// (access/ID token, expiry, scopes).
package credentials

import (
	"errors"
	"time"

	"github.com/lanternhq/authkit/pkg/logger"
	"github.com/lanternhq/authkit/pkg/oauth"
	"github.com/lanternhq/authkit/pkg/providers"
	"github.com/lanternhq/authkit/pkg/secrets/keyring"

	"sync"
)

// ServiceName is the secret-store service all refresh tokens are filed
// under; the account is the provider ID.
const ServiceName = "lantern"

// Session is the volatile, non-secret half of a token set. Access and ID
// tokens are short-lived, so keeping them in process memory only is
// acceptable.
type Session struct {
	Provider      string
	AccessToken   string
	IDToken       string
	TokenType     string
	ExpiresAt     time.Time
	GrantedScopes []string
	Identity      *oauth.Identity
}

// Expired reports whether the session's access token is within buffer of
// its expiry.
func (s *Session) Expired(now time.Time, buffer time.Duration) bool {
	return !now.Add(buffer).Before(s.ExpiresAt)
}

// Store is the credential store. All methods are safe for concurrent use.
type Store struct {
	secrets keyring.Provider

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates a credential store over the given secret backend.
func NewStore(secrets keyring.Provider) *Store {
	return &Store{
		secrets:  secrets,
		sessions: make(map[string]*Session),
	}
}

// Save persists a freshly received token set. The refresh token, when
// present, is written to the secret store before the session state is
// replaced. isRefresh distinguishes the refresh grant, where a response
// without a new refresh token leaves the stored one untouched, from the
// authorization-code exchange, where it may mean the stored token is stale.
//
// A secret-store failure is returned as *oauth.StorageError after the
// in-memory session has been updated: the session proceeds, the caller
// surfaces the warning.
func (s *Store) Save(cfg providers.Config, set *oauth.TokenSet, isRefresh bool) error {
	var storageErr error

	switch {
	case set.RefreshToken != "":
		if err := s.secrets.Set(ServiceName, cfg.ID, set.RefreshToken); err != nil {
			storageErr = &oauth.StorageError{Op: "write", Provider: cfg.ID, Cause: err}
		}
	case isRefresh:
		// Providers rotate refresh tokens only occasionally; an omitted
		// token on a refresh grant means "keep using the old one".
	default:
		logger.Warnf("provider %s returned no refresh token on code exchange", cfg.ID)
		if cfg.DiscardStaleRefreshToken() {
			if err := s.secrets.Delete(ServiceName, cfg.ID); err != nil && !errors.Is(err, keyring.ErrNotFound) {
				storageErr = &oauth.StorageError{Op: "delete", Provider: cfg.ID, Cause: err}
			}
		}
	}

	session := &Session{
		Provider:      set.Provider,
		AccessToken:   set.AccessToken,
		IDToken:       set.IDToken,
		TokenType:     set.TokenType,
		ExpiresAt:     set.ExpiresAt,
		GrantedScopes: set.GrantedScopes,
	}
	if set.IDToken != "" {
		if identity, err := oauth.ExtractIdentity(set.IDToken); err == nil {
			session.Identity = identity
		} else {
			logger.Debugf("could not extract identity from ID token: %v", err)
		}
	}

	s.mu.Lock()
	s.sessions[cfg.ID] = session
	s.mu.Unlock()

	return storageErr
}

// Session returns the volatile session state for the provider, if any.
func (s *Store) Session(provider string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[provider]
	return session, ok
}

// LoadRefreshToken reads the stored refresh token for the provider. A
// missing token is not an error; backend failures are *oauth.StorageError.
func (s *Store) LoadRefreshToken(provider string) (string, bool, error) {
	token, err := s.secrets.Get(ServiceName, provider)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &oauth.StorageError{Op: "read", Provider: provider, Cause: err}
	}
	return token, true, nil
}

// Clear drops the session state and deletes the stored refresh token for
// the provider. Used on logout and on unrecoverable refresh failure.
func (s *Store) Clear(provider string) error {
	s.mu.Lock()
	delete(s.sessions, provider)
	s.mu.Unlock()

	if err := s.secrets.Delete(ServiceName, provider); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return &oauth.StorageError{Op: "delete", Provider: provider, Cause: err}
	}
	return nil
}
