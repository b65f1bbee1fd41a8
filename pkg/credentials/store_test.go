// SPDX-FileCopyrightText: Copyright 2025 Lantern Labs, Inc.
// SPDX-License-Identifier: Apache-2.0

package credentials

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhq/authkit/pkg/oauth"
	"github.com/lanternhq/authkit/pkg/providers"
	"github.com/lanternhq/authkit/pkg/secrets/keyring"
)

func googleConfig() providers.Config {
	return providers.Config{
		ID:       "google",
		Issuer:   "https://accounts.google.com",
		ClientID: "client-123",
	}
}

func tokenSet(refreshToken string) *oauth.TokenSet {
	return &oauth.TokenSet{
		Provider:      "google",
		AccessToken:   "AT1",
		RefreshToken:  refreshToken,
		ExpiresAt:     time.Now().Add(time.Hour),
		GrantedScopes: []string{"openid", "email"},
	}
}

func TestSaveWritesRefreshTokenToSecureStore(t *testing.T) {
	t.Parallel()

	mock := keyring.NewMockProvider()
	store := NewStore(mock)

	require.NoError(t, store.Save(googleConfig(), tokenSet("RT1"), false))

	rt, ok, err := store.LoadRefreshToken("google")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "RT1", rt)

	session, ok := store.Session("google")
	require.True(t, ok)
	assert.Equal(t, "AT1", session.AccessToken)
	assert.Equal(t, []string{"openid", "email"}, session.GrantedScopes)
}

func TestSaveExtractsIdentityFromIDToken(t *testing.T) {
	t.Parallel()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-42", "email": "dev@example.com",
	})
	idToken, err := token.SignedString([]byte("k"))
	require.NoError(t, err)

	set := tokenSet("RT1")
	set.IDToken = idToken

	store := NewStore(keyring.NewMockProvider())
	require.NoError(t, store.Save(googleConfig(), set, false))

	session, ok := store.Session("google")
	require.True(t, ok)
	require.NotNil(t, session.Identity)
	assert.Equal(t, "dev@example.com", session.Identity.Email)
}

func TestSaveCodeExchangeWithoutRefreshTokenDiscardsStale(t *testing.T) {
	t.Parallel()

	mock := keyring.NewMockProvider()
	store := NewStore(mock)
	require.NoError(t, store.Save(googleConfig(), tokenSet("RT1"), false))

	// Provider stops issuing refresh tokens: the stale RT1 must go.
	require.NoError(t, store.Save(googleConfig(), tokenSet(""), false))

	_, ok, err := store.LoadRefreshToken("google")
	require.NoError(t, err)
	assert.False(t, ok, "stale refresh token should have been cleared")
}

func TestSaveCodeExchangeRetainPolicyKeepsStored(t *testing.T) {
	t.Parallel()

	cfg := googleConfig()
	cfg.RefreshPolicy = providers.RefreshTokenRetain

	store := NewStore(keyring.NewMockProvider())
	require.NoError(t, store.Save(cfg, tokenSet("RT1"), false))
	require.NoError(t, store.Save(cfg, tokenSet(""), false))

	rt, ok, err := store.LoadRefreshToken("google")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "RT1", rt)
}

func TestSaveRefreshWithoutRotationKeepsStored(t *testing.T) {
	t.Parallel()

	store := NewStore(keyring.NewMockProvider())
	require.NoError(t, store.Save(googleConfig(), tokenSet("RT1"), false))

	// Refresh grant returning only a new access token.
	refreshed := tokenSet("")
	refreshed.AccessToken = "AT2"
	require.NoError(t, store.Save(googleConfig(), refreshed, true))

	rt, ok, err := store.LoadRefreshToken("google")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "RT1", rt)

	session, _ := store.Session("google")
	assert.Equal(t, "AT2", session.AccessToken)
}

func TestSaveRefreshWithRotationReplacesStored(t *testing.T) {
	t.Parallel()

	store := NewStore(keyring.NewMockProvider())
	require.NoError(t, store.Save(googleConfig(), tokenSet("RT1"), false))
	require.NoError(t, store.Save(googleConfig(), tokenSet("RT2"), true))

	rt, _, err := store.LoadRefreshToken("google")
	require.NoError(t, err)
	assert.Equal(t, "RT2", rt)
}

func TestSaveStorageFailureStillUpdatesSession(t *testing.T) {
	t.Parallel()

	mock := keyring.NewMockProvider()
	mock.FailWith = errors.New("dbus is down")
	store := NewStore(mock)

	err := store.Save(googleConfig(), tokenSet("RT1"), false)
	var storageErr *oauth.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "write", storageErr.Op)

	// The in-memory session proceeds regardless.
	session, ok := store.Session("google")
	require.True(t, ok)
	assert.Equal(t, "AT1", session.AccessToken)
}

func TestClearRemovesSessionAndSecret(t *testing.T) {
	t.Parallel()

	store := NewStore(keyring.NewMockProvider())
	require.NoError(t, store.Save(googleConfig(), tokenSet("RT1"), false))

	require.NoError(t, store.Clear("google"))

	_, ok := store.Session("google")
	assert.False(t, ok)
	_, found, err := store.LoadRefreshToken("google")
	require.NoError(t, err)
	assert.False(t, found)

	// Idempotent.
	require.NoError(t, store.Clear("google"))
}

func TestSessionExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	session := &Session{ExpiresAt: now.Add(90 * time.Second)}
	assert.False(t, session.Expired(now, 60*time.Second))
	assert.True(t, session.Expired(now.Add(31*time.Second), 60*time.Second))
}
