// Package discovery fetches and caches OIDC discovery documents for the
// configured identity providers.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lanternhq/authkit/pkg/logger"
	"github.com/lanternhq/authkit/pkg/networking"
	"github.com/lanternhq/authkit/pkg/oauth"
	"github.com/lanternhq/authkit/pkg/providers"
)

// maxResponseSize bounds the discovery document body to prevent DoS.
const maxResponseSize = 1024 * 1024 // 1MB

// Document represents the OIDC discovery document structure, reduced to the
// fields the auth core consumes.
type Document struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	UserinfoEndpoint              string   `json:"userinfo_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// Client fetches discovery documents and caches successful results in memory
// for the process lifetime. Discovery documents are treated as effectively
// static; there is no TTL. Failures are not cached and not retried
// automatically.
type Client struct {
	doer networking.HTTPDoer

	mu    sync.RWMutex
	cache map[string]*Document

	// group deduplicates concurrent fetches for the same provider.
	group singleflight.Group
}

// NewClient creates a discovery client over the given transport. A nil doer
// falls back to the default hardened HTTP client.
func NewClient(doer networking.HTTPDoer) *Client {
	if doer == nil {
		doer = networking.DefaultClient()
	}
	return &Client{
		doer:  doer,
		cache: make(map[string]*Document),
	}
}

// Fetch returns the discovery document for the provider, fetching it on
// first use. Errors are *oauth.ConfigurationError.
func (c *Client) Fetch(ctx context.Context, cfg providers.Config) (*Document, error) {
	c.mu.RLock()
	doc, ok := c.cache[cfg.ID]
	c.mu.RUnlock()
	if ok {
		return doc, nil
	}

	result, err, _ := c.group.Do(cfg.ID, func() (any, error) {
		// Re-check under the group: a concurrent fetch may have
		// populated the cache while we waited.
		c.mu.RLock()
		doc, ok := c.cache[cfg.ID]
		c.mu.RUnlock()
		if ok {
			return doc, nil
		}

		doc, err := c.fetch(ctx, cfg)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[cfg.ID] = doc
		c.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, &oauth.ConfigurationError{Provider: cfg.ID, Cause: err}
	}
	return result.(*Document), nil
}

func (c *Client) fetch(ctx context.Context, cfg providers.Config) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.DiscoveryURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Lantern/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OIDC configuration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode OIDC configuration: %w", err)
	}

	if err := validateDocument(&doc, cfg.Issuer); err != nil {
		return nil, fmt.Errorf("invalid OIDC configuration: %w", err)
	}
	return &doc, nil
}

func validateDocument(doc *Document, expectedIssuer string) error {
	if doc.Issuer == "" {
		return fmt.Errorf("missing issuer")
	}
	if doc.AuthorizationEndpoint == "" {
		return fmt.Errorf("missing authorization_endpoint")
	}
	if doc.TokenEndpoint == "" {
		return fmt.Errorf("missing token_endpoint")
	}

	// Multi-tenant issuers (e.g. Microsoft "common") template the tenant
	// into the issuer, so a mismatch is only a warning here.
	if doc.Issuer != expectedIssuer {
		logger.Warnf("discovery issuer %s does not match configured issuer %s", doc.Issuer, expectedIssuer)
	}

	endpoints := map[string]string{
		"authorization_endpoint": doc.AuthorizationEndpoint,
		"token_endpoint":         doc.TokenEndpoint,
	}
	if doc.UserinfoEndpoint != "" {
		endpoints["userinfo_endpoint"] = doc.UserinfoEndpoint
	}
	if doc.JWKSURI != "" {
		endpoints["jwks_uri"] = doc.JWKSURI
	}
	for name, endpoint := range endpoints {
		if err := validateEndpointURL(endpoint); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

func validateEndpointURL(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && !isLocalhost(u.Host) {
		return fmt.Errorf("endpoint must use HTTPS: %s", endpoint)
	}
	return nil
}

func isLocalhost(host string) bool {
	return strings.HasPrefix(host, "localhost:") ||
		strings.HasPrefix(host, "127.0.0.1:") ||
		strings.HasPrefix(host, "[::1]:") ||
		host == "localhost" ||
		host == "127.0.0.1" ||
		host == "[::1]"
}
