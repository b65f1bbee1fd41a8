package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lanternhq/authkit/pkg/logger"
	"github.com/lanternhq/authkit/pkg/networking"
	"github.com/lanternhq/authkit/pkg/providers"
)

// defaultTokenLifetime is assumed when the provider omits expires_in.
const defaultTokenLifetime = 3600 * time.Second

// maxTokenResponseSize bounds the token response body.
const maxTokenResponseSize = 1024 * 1024 // 1MB

// TokenSet is the result of a successful token request. The refresh token,
// when present, must be written to secure storage before the session is
// marked logged in; the remaining fields are volatile session state.
type TokenSet struct {
	Provider      string
	AccessToken   string
	IDToken       string
	RefreshToken  string
	TokenType     string
	ExpiresAt     time.Time
	GrantedScopes []string
}

// Expired reports whether the access token is within buffer of its expiry.
func (t *TokenSet) Expired(now time.Time, buffer time.Duration) bool {
	return !now.Add(buffer).Before(t.ExpiresAt)
}

// ExchangeClient executes authorization-code and refresh-token grants
// against a provider's token endpoint over the injected transport.
type ExchangeClient struct {
	doer networking.HTTPDoer

	// now is replaceable in tests; ExpiresAt is always derived from it at
	// the moment tokens are received, never from a stale clock.
	now func() time.Time
}

// NewExchangeClient creates a token exchange client. A nil doer falls back
// to the default hardened HTTP client.
func NewExchangeClient(doer networking.HTTPDoer) *ExchangeClient {
	if doer == nil {
		doer = networking.DefaultClient()
	}
	return &ExchangeClient{doer: doer, now: time.Now}
}

// tokenResponse is the provider's JSON token response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope"`
}

// tokenError is the provider's RFC 6749 error response.
type tokenError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// ExchangeCode posts the authorization-code grant for the attempt and
// returns the resulting token set. Failures are *TokenExchangeError.
func (c *ExchangeClient) ExchangeCode(
	ctx context.Context,
	cfg providers.Config,
	tokenEndpoint string,
	attempt *Attempt,
	code string,
) (*TokenSet, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {attempt.RedirectURI},
		"client_id":     {cfg.ClientID},
		"code_verifier": {attempt.CodeVerifier},
	}
	if cfg.ClientSecret != "" {
		form.Set("client_secret", cfg.ClientSecret)
	}

	resp, status, err := c.doTokenRequest(ctx, tokenEndpoint, form)
	if err != nil {
		return nil, fmt.Errorf("authorization code exchange: %w", err)
	}
	if status < 200 || status >= 300 {
		tokenErr := parseTokenError(resp)
		return nil, &TokenExchangeError{Status: status, Code: tokenErr.Code, Description: tokenErr.Description}
	}

	return c.buildTokenSet(cfg.ID, resp, attempt.Scopes)
}

// Refresh posts the refresh-token grant for the provider and returns a new
// token set. Failures are *RefreshError; use RefreshError.InvalidGrant to
// distinguish terminal failures from transient ones.
func (c *ExchangeClient) Refresh(
	ctx context.Context,
	cfg providers.Config,
	tokenEndpoint string,
	refreshToken string,
) (*TokenSet, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {cfg.ClientID},
		"redirect_uri":  {cfg.RedirectURI()},
	}
	if cfg.ClientSecret != "" {
		form.Set("client_secret", cfg.ClientSecret)
	}

	resp, status, err := c.doTokenRequest(ctx, tokenEndpoint, form)
	if err != nil {
		// Network-level failure: transient by definition.
		return nil, &RefreshError{Cause: err}
	}
	if status < 200 || status >= 300 {
		tokenErr := parseTokenError(resp)
		return nil, &RefreshError{Status: status, Code: tokenErr.Code, Description: tokenErr.Description}
	}

	set, err := c.buildTokenSet(cfg.ID, resp, nil)
	if err != nil {
		return nil, &RefreshError{Cause: err}
	}
	return set, nil
}

// doTokenRequest is the single primitive both grants are built on: a
// form-encoded POST to the token endpoint over the injected transport.
func (c *ExchangeClient) doTokenRequest(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read token response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *ExchangeClient) buildTokenSet(provider string, body []byte, requestedScopes []string) (*TokenSet, error) {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("token response carried no access token")
	}

	lifetime := defaultTokenLifetime
	if resp.ExpiresIn > 0 {
		lifetime = time.Duration(resp.ExpiresIn) * time.Second
	} else {
		logger.Debugf("token response for %s omitted expires_in, assuming %s", provider, defaultTokenLifetime)
	}

	granted := requestedScopes
	if resp.Scope != "" {
		granted = strings.Fields(resp.Scope)
	}

	return &TokenSet{
		Provider:      provider,
		AccessToken:   resp.AccessToken,
		IDToken:       resp.IDToken,
		RefreshToken:  resp.RefreshToken,
		TokenType:     resp.TokenType,
		ExpiresAt:     c.now().Add(lifetime),
		GrantedScopes: granted,
	}, nil
}

// parseTokenError extracts the provider's error/error_description fields,
// tolerating non-JSON bodies.
func parseTokenError(body []byte) tokenError {
	var te tokenError
	if err := json.Unmarshal(body, &te); err != nil {
		return tokenError{Description: truncate(string(body), 200)}
	}
	return te
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
