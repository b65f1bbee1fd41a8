// Package providers holds the static per-provider OAuth client settings the
// auth core is built from. Configurations are immutable once loaded.
package providers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultCallbackPort is the loopback port the redirect listener binds when a
// provider does not override it. The redirect URI derived from it must exactly
// match the URI registered with the provider's OAuth client.
const DefaultCallbackPort = 8765

// RefreshTokenPolicy controls what happens to a previously stored refresh
// token when an authorization-code exchange returns none.
type RefreshTokenPolicy string

const (
	// RefreshTokenDiscard clears any stored refresh token when a code
	// exchange yields none. A provider that stops issuing refresh tokens
	// must not leave a stale one usable.
	RefreshTokenDiscard RefreshTokenPolicy = "discard"

	// RefreshTokenRetain keeps the stored refresh token even when a code
	// exchange yields none.
	RefreshTokenRetain RefreshTokenPolicy = "retain"
)

// Config contains the immutable OAuth client settings for one identity
// provider. Loaded at startup, never mutated.
type Config struct {
	// ID is the short provider identifier, e.g. "google".
	ID string `mapstructure:"id"`

	// Issuer is the OIDC issuer URL; the discovery document is fetched
	// from <issuer>/.well-known/openid-configuration.
	Issuer string `mapstructure:"issuer"`

	// ClientID is the OAuth client ID registered with the provider.
	ClientID string `mapstructure:"client_id"`

	// ClientSecret is the OAuth client secret. Optional; desktop clients
	// normally rely on PKCE alone.
	ClientSecret string `mapstructure:"client_secret"`

	// BaseScopes are the scopes requested on every login.
	BaseScopes []string `mapstructure:"scopes"`

	// CallbackPort is the fixed loopback port for the redirect listener.
	// Zero means DefaultCallbackPort.
	CallbackPort int `mapstructure:"callback_port"`

	// AuthParams are provider-specific extra authorization request
	// parameters, e.g. access_type=offline for Google refresh tokens.
	AuthParams map[string]string `mapstructure:"auth_params"`

	// RefreshPolicy controls stale refresh-token handling, see
	// RefreshTokenPolicy. Empty means RefreshTokenDiscard.
	RefreshPolicy RefreshTokenPolicy `mapstructure:"refresh_policy"`
}

// Validate checks that the configuration is complete enough to run a login.
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.New("provider id is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("provider %s: client ID is required", c.ID)
	}
	if c.Issuer == "" {
		return fmt.Errorf("provider %s: issuer is required", c.ID)
	}
	u, err := url.Parse(c.Issuer)
	if err != nil {
		return fmt.Errorf("provider %s: invalid issuer URL: %w", c.ID, err)
	}
	if u.Scheme != "https" && !isLocalhost(u.Host) {
		return fmt.Errorf("provider %s: issuer must use HTTPS: %s", c.ID, c.Issuer)
	}
	switch c.RefreshPolicy {
	case "", RefreshTokenDiscard, RefreshTokenRetain:
	default:
		return fmt.Errorf("provider %s: unknown refresh policy %q", c.ID, c.RefreshPolicy)
	}
	return nil
}

// DiscoveryURL returns the well-known OIDC discovery endpoint for the
// provider's issuer.
func (c *Config) DiscoveryURL() string {
	return strings.TrimSuffix(c.Issuer, "/") + "/.well-known/openid-configuration"
}

// Port returns the effective callback port.
func (c *Config) Port() int {
	if c.CallbackPort != 0 {
		return c.CallbackPort
	}
	return DefaultCallbackPort
}

// RedirectURI returns the loopback redirect URI for the provider.
func (c *Config) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d/callback", c.Port())
}

// DiscardStaleRefreshToken reports whether the effective refresh-token policy
// is to discard a stored token when a code exchange returns none.
func (c *Config) DiscardStaleRefreshToken() bool {
	return c.RefreshPolicy != RefreshTokenRetain
}

func isLocalhost(host string) bool {
	return strings.HasPrefix(host, "localhost:") ||
		strings.HasPrefix(host, "127.0.0.1:") ||
		strings.HasPrefix(host, "[::1]:") ||
		host == "localhost" ||
		host == "127.0.0.1" ||
		host == "[::1]"
}
