package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhq/authkit/pkg/providers"
)

func testProviderConfig() providers.Config {
	return providers.Config{
		ID:         "google",
		Issuer:     "https://accounts.google.com",
		ClientID:   "client-123",
		BaseScopes: []string{"openid", "email"},
	}
}

// unreserved is the RFC 3986 unreserved character set permitted in PKCE
// code verifiers.
func isUnreserved(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '.' || r == '_' || r == '~':
		return true
	}
	return false
}

func TestNewAttemptPKCEPair(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		attempt, err := NewAttempt(testProviderConfig(), []string{"openid"}, false)
		require.NoError(t, err)

		require.GreaterOrEqual(t, len(attempt.CodeVerifier), 43)
		require.LessOrEqual(t, len(attempt.CodeVerifier), 128)
		for _, r := range attempt.CodeVerifier {
			require.True(t, isUnreserved(r), "verifier contains reserved character %q", r)
		}

		hash := sha256.Sum256([]byte(attempt.CodeVerifier))
		assert.Equal(t, base64.RawURLEncoding.EncodeToString(hash[:]), attempt.CodeChallenge)
	}
}

func TestNewAttemptIsUnique(t *testing.T) {
	t.Parallel()

	a, err := NewAttempt(testProviderConfig(), nil, false)
	require.NoError(t, err)
	b, err := NewAttempt(testProviderConfig(), nil, false)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.CodeVerifier, b.CodeVerifier)
	assert.NotEqual(t, a.State, b.State)
}

func TestNewAttemptDerivesRedirectURI(t *testing.T) {
	t.Parallel()

	cfg := testProviderConfig()
	cfg.CallbackPort = 9321

	attempt, err := NewAttempt(cfg, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9321/callback", attempt.RedirectURI)
	assert.Equal(t, "google", attempt.Provider)
}

func TestMergeScopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sets [][]string
		want []string
	}{
		{
			name: "union preserves first-seen order",
			sets: [][]string{{"openid", "email"}, {"email", "drive.readonly"}},
			want: []string{"openid", "email", "drive.readonly"},
		},
		{
			name: "empty entries dropped",
			sets: [][]string{{"openid", ""}, {""}},
			want: []string{"openid"},
		},
		{
			name: "all empty",
			sets: [][]string{nil, {}},
			want: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MergeScopes(tt.sets...))
		})
	}
}
