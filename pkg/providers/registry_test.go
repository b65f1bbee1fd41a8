package providers

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		ID:         "google",
		Issuer:     "https://accounts.google.com",
		ClientID:   "client-123",
		BaseScopes: []string{"openid", "email"},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing id",
			mutate:  func(c *Config) { c.ID = "" },
			wantErr: "provider id is required",
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.ClientID = "" },
			wantErr: "client ID is required",
		},
		{
			name:    "missing issuer",
			mutate:  func(c *Config) { c.Issuer = "" },
			wantErr: "issuer is required",
		},
		{
			name:    "plain http issuer",
			mutate:  func(c *Config) { c.Issuer = "http://accounts.google.com" },
			wantErr: "must use HTTPS",
		},
		{
			name:   "localhost http issuer allowed",
			mutate: func(c *Config) { c.Issuer = "http://localhost:9998" },
		},
		{
			name:    "unknown refresh policy",
			mutate:  func(c *Config) { c.RefreshPolicy = "sometimes" },
			wantErr: "unknown refresh policy",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfigDerivedValues(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	assert.Equal(t, "https://accounts.google.com/.well-known/openid-configuration", cfg.DiscoveryURL())
	assert.Equal(t, DefaultCallbackPort, cfg.Port())
	assert.Equal(t, "http://localhost:8765/callback", cfg.RedirectURI())
	assert.True(t, cfg.DiscardStaleRefreshToken())

	cfg.CallbackPort = 9123
	cfg.RefreshPolicy = RefreshTokenRetain
	assert.Equal(t, "http://localhost:9123/callback", cfg.RedirectURI())
	assert.False(t, cfg.DiscardStaleRefreshToken())
}

func TestRegistryGet(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(validConfig())
	require.NoError(t, err)

	cfg, err := reg.Get("google")
	require.NoError(t, err)
	assert.Equal(t, "client-123", cfg.ClientID)

	_, err = reg.Get("nope")
	assert.ErrorContains(t, err, `unknown provider "nope"`)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(validConfig(), validConfig())
	assert.ErrorContains(t, err, "duplicate provider")
}

func TestLoadRegistryMergesBuiltins(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
providers:
  - id: google
    client_id: file-client
    callback_port: 9001
  - id: corp
    issuer: https://sso.corp.example.com
    client_id: corp-client
    scopes: [openid, groups]
`)))

	reg, err := LoadRegistry(v)
	require.NoError(t, err)

	google, err := reg.Get("google")
	require.NoError(t, err)
	assert.Equal(t, "file-client", google.ClientID)
	assert.Equal(t, 9001, google.CallbackPort)
	// Built-in protocol settings survive the overlay.
	assert.Equal(t, "https://accounts.google.com", google.Issuer)
	assert.Equal(t, "offline", google.AuthParams["access_type"])

	corp, err := reg.Get("corp")
	require.NoError(t, err)
	assert.Equal(t, []string{"openid", "groups"}, corp.BaseScopes)

	assert.Equal(t, []string{"corp", "google"}, reg.IDs())
}
