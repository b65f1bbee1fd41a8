package oauth

import (
	"sort"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/lanternhq/authkit/pkg/providers"
)

// AuthCodeURL builds the full authorization URL for the attempt against the
// discovered authorization endpoint.
func AuthCodeURL(cfg providers.Config, authorizationEndpoint string, attempt *Attempt) string {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  attempt.RedirectURI,
		Scopes:       attempt.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL: authorizationEndpoint,
		},
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", attempt.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}

	// Provider-specific extras in deterministic order.
	keys := make([]string, 0, len(cfg.AuthParams))
	for k := range cfg.AuthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, oauth2.SetAuthURLParam(k, cfg.AuthParams[k]))
	}

	if attempt.ForceConsent {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "consent"))
	}

	return oauthCfg.AuthCodeURL(attempt.State, opts...)
}

// OpenBrowser opens the URL in the OS default browser. A launch failure is
// reported to the caller but does not corrupt the attempt; the user can
// still open the URL manually.
func OpenBrowser(url string) error {
	return browser.OpenURL(url)
}
