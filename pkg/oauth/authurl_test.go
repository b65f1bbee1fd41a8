package oauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthCodeURL(t *testing.T) {
	t.Parallel()

	cfg := testProviderConfig()
	cfg.AuthParams = map[string]string{"access_type": "offline"}

	attempt, err := NewAttempt(cfg, []string{"openid", "email", "drive.readonly"}, false)
	require.NoError(t, err)

	raw := AuthCodeURL(cfg, "https://accounts.google.com/o/oauth2/v2/auth", attempt)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "client-123", query.Get("client_id"))
	assert.Equal(t, attempt.RedirectURI, query.Get("redirect_uri"))
	assert.Equal(t, attempt.State, query.Get("state"))
	assert.Equal(t, attempt.CodeChallenge, query.Get("code_challenge"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Equal(t, "openid email drive.readonly", query.Get("scope"))
	assert.Equal(t, "offline", query.Get("access_type"))
	assert.Empty(t, query.Get("prompt"))
}

func TestAuthCodeURLForceConsent(t *testing.T) {
	t.Parallel()

	cfg := testProviderConfig()
	attempt, err := NewAttempt(cfg, []string{"openid"}, true)
	require.NoError(t, err)

	raw := AuthCodeURL(cfg, "https://accounts.google.com/o/oauth2/v2/auth", attempt)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "consent", parsed.Query().Get("prompt"))
}
