package oauth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func TestExtractIdentity(t *testing.T) {
	t.Parallel()

	idToken := signedIDToken(t, jwt.MapClaims{
		"sub":   "user-42",
		"email": "dev@example.com",
		"name":  "Dev Example",
		"iss":   "https://accounts.google.com",
	})

	identity, err := ExtractIdentity(idToken)
	require.NoError(t, err)
	assert.Equal(t, "user-42", identity.Subject)
	assert.Equal(t, "dev@example.com", identity.Email)
	assert.Equal(t, "Dev Example", identity.Name)
}

func TestExtractIdentityPartialClaims(t *testing.T) {
	t.Parallel()

	identity, err := ExtractIdentity(signedIDToken(t, jwt.MapClaims{"sub": "user-42"}))
	require.NoError(t, err)
	assert.Equal(t, "user-42", identity.Subject)
	assert.Empty(t, identity.Email)
	assert.Empty(t, identity.Name)
}

func TestExtractIdentityMalformed(t *testing.T) {
	t.Parallel()

	_, err := ExtractIdentity("not-a-jwt")
	assert.Error(t, err)
}
