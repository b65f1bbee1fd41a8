package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhq/authkit/pkg/providers"
)

// tokenEndpoint spins up a fake token endpoint that records the last form
// it received and replies with the configured status and JSON body.
type tokenEndpoint struct {
	server   *httptest.Server
	status   int
	body     string
	lastForm map[string][]string
}

func newTokenEndpoint(t *testing.T) *tokenEndpoint {
	t.Helper()
	te := &tokenEndpoint{status: http.StatusOK}
	te.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		te.lastForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(te.status)
		fmt.Fprint(w, te.body)
	}))
	t.Cleanup(te.server.Close)
	return te
}

func newAttemptForTest(t *testing.T, cfg providers.Config) *Attempt {
	t.Helper()
	attempt, err := NewAttempt(cfg, []string{"openid", "email"}, false)
	require.NoError(t, err)
	return attempt
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()

	te := newTokenEndpoint(t)
	te.body = `{"access_token":"AT1","refresh_token":"RT1","id_token":"IDT","token_type":"Bearer","expires_in":1800,"scope":"openid email"}`

	cfg := testProviderConfig()
	attempt := newAttemptForTest(t, cfg)

	client := NewExchangeClient(nil)
	fixed := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	set, err := client.ExchangeCode(context.Background(), cfg, te.server.URL, attempt, "code-abc")
	require.NoError(t, err)

	assert.Equal(t, "AT1", set.AccessToken)
	assert.Equal(t, "RT1", set.RefreshToken)
	assert.Equal(t, "IDT", set.IDToken)
	assert.Equal(t, "google", set.Provider)
	assert.Equal(t, fixed.Add(1800*time.Second), set.ExpiresAt)
	assert.Equal(t, []string{"openid", "email"}, set.GrantedScopes)

	assert.Equal(t, "authorization_code", te.lastForm["grant_type"][0])
	assert.Equal(t, "code-abc", te.lastForm["code"][0])
	assert.Equal(t, attempt.CodeVerifier, te.lastForm["code_verifier"][0])
	assert.Equal(t, attempt.RedirectURI, te.lastForm["redirect_uri"][0])
	assert.Equal(t, "client-123", te.lastForm["client_id"][0])
	assert.NotContains(t, te.lastForm, "client_secret")
}

func TestExchangeCodeSendsClientSecretWhenConfigured(t *testing.T) {
	t.Parallel()

	te := newTokenEndpoint(t)
	te.body = `{"access_token":"AT1"}`

	cfg := testProviderConfig()
	cfg.ClientSecret = "hush"
	attempt := newAttemptForTest(t, cfg)

	_, err := NewExchangeClient(nil).ExchangeCode(context.Background(), cfg, te.server.URL, attempt, "code")
	require.NoError(t, err)
	assert.Equal(t, "hush", te.lastForm["client_secret"][0])
}

func TestExchangeCodeDefaultsLifetime(t *testing.T) {
	t.Parallel()

	te := newTokenEndpoint(t)
	te.body = `{"access_token":"AT1"}`

	cfg := testProviderConfig()
	client := NewExchangeClient(nil)
	fixed := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	set, err := client.ExchangeCode(context.Background(), cfg, te.server.URL, newAttemptForTest(t, cfg), "code")
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Hour), set.ExpiresAt)
	// No scope in the response: requested scopes are assumed granted.
	assert.Equal(t, []string{"openid", "email"}, set.GrantedScopes)
}

func TestExchangeCodeSurfacesProviderError(t *testing.T) {
	t.Parallel()

	te := newTokenEndpoint(t)
	te.status = http.StatusBadRequest
	te.body = `{"error":"invalid_request","error_description":"bad verifier"}`

	cfg := testProviderConfig()
	_, err := NewExchangeClient(nil).ExchangeCode(context.Background(), cfg, te.server.URL, newAttemptForTest(t, cfg), "code")

	var exchangeErr *TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusBadRequest, exchangeErr.Status)
	assert.Equal(t, "invalid_request", exchangeErr.Code)
	assert.Equal(t, "bad verifier", exchangeErr.Description)
}

func TestExchangeCodeToleratesNonJSONError(t *testing.T) {
	t.Parallel()

	te := newTokenEndpoint(t)
	te.status = http.StatusBadGateway
	te.body = `<html>gateway timeout</html>`

	cfg := testProviderConfig()
	_, err := NewExchangeClient(nil).ExchangeCode(context.Background(), cfg, te.server.URL, newAttemptForTest(t, cfg), "code")

	var exchangeErr *TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusBadGateway, exchangeErr.Status)
	assert.Contains(t, exchangeErr.Description, "gateway timeout")
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	te := newTokenEndpoint(t)
	te.body = `{"access_token":"AT2","expires_in":3600}`

	cfg := testProviderConfig()
	set, err := NewExchangeClient(nil).Refresh(context.Background(), cfg, te.server.URL, "RT1")
	require.NoError(t, err)

	assert.Equal(t, "AT2", set.AccessToken)
	// Provider rotated nothing: the refresh token field stays empty so the
	// credential store keeps the existing one.
	assert.Empty(t, set.RefreshToken)

	assert.Equal(t, "refresh_token", te.lastForm["grant_type"][0])
	assert.Equal(t, "RT1", te.lastForm["refresh_token"][0])
	assert.Equal(t, "client-123", te.lastForm["client_id"][0])
	assert.Equal(t, cfg.RedirectURI(), te.lastForm["redirect_uri"][0])
}

func TestRefreshClassifiesInvalidGrant(t *testing.T) {
	t.Parallel()

	te := newTokenEndpoint(t)
	te.status = http.StatusBadRequest
	te.body = `{"error":"invalid_grant","error_description":"token revoked"}`

	cfg := testProviderConfig()
	_, err := NewExchangeClient(nil).Refresh(context.Background(), cfg, te.server.URL, "RT-stale")

	var refreshErr *RefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.True(t, refreshErr.InvalidGrant())
	assert.True(t, IsInvalidGrant(err))
}

func TestRefreshTransientFailures(t *testing.T) {
	t.Parallel()

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		te := newTokenEndpoint(t)
		te.status = http.StatusInternalServerError
		te.body = `{}`

		_, err := NewExchangeClient(nil).Refresh(context.Background(), testProviderConfig(), te.server.URL, "RT1")
		var refreshErr *RefreshError
		require.ErrorAs(t, err, &refreshErr)
		assert.False(t, refreshErr.InvalidGrant())
	})

	t.Run("network error", func(t *testing.T) {
		t.Parallel()
		te := newTokenEndpoint(t)
		te.server.Close()

		_, err := NewExchangeClient(nil).Refresh(context.Background(), testProviderConfig(), te.server.URL, "RT1")
		var refreshErr *RefreshError
		require.ErrorAs(t, err, &refreshErr)
		assert.False(t, refreshErr.InvalidGrant())
		assert.False(t, IsInvalidGrant(errors.New("unrelated")))
	})
}

func TestTokenSetExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	set := &TokenSet{ExpiresAt: now.Add(90 * time.Second)}

	assert.False(t, set.Expired(now, 60*time.Second))
	assert.True(t, set.Expired(now.Add(30*time.Second), 60*time.Second))
	assert.True(t, set.Expired(now.Add(2*time.Minute), 60*time.Second))
}
