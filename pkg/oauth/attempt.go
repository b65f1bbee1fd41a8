// Package oauth implements the OAuth 2.0 / OIDC protocol layer of the auth
// core: PKCE authorization attempts, the loopback redirect listener and the
// token exchange client.
package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/lanternhq/authkit/pkg/providers"
)

// Attempt is one in-flight authorization request. It exclusively owns the
// PKCE code verifier until the redirect is consumed by the token exchange;
// the verifier is single use and the attempt is discarded afterwards. At
// most one attempt is live per process.
type Attempt struct {
	// ID uniquely identifies the attempt so late redirect deliveries for
	// a superseded attempt can be discarded.
	ID string

	Provider      string
	CodeVerifier  string
	CodeChallenge string
	State         string
	RedirectURI   string

	// Scopes is the full requested scope set (base ∪ granted ∪ extra).
	Scopes []string

	// ForceConsent adds prompt=consent so the provider re-runs the
	// consent screen, used for scope-upgrade flows.
	ForceConsent bool

	CreatedAt time.Time
}

// NewAttempt creates a fresh authorization attempt for the provider with a
// new PKCE pair and state parameter. scopes must already be merged and
// deduplicated, see MergeScopes.
func NewAttempt(cfg providers.Config, scopes []string, forceConsent bool) (*Attempt, error) {
	verifier := oauth2.GenerateVerifier()
	hash := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	return &Attempt{
		ID:            uuid.NewString(),
		Provider:      cfg.ID,
		CodeVerifier:  verifier,
		CodeChallenge: challenge,
		State:         base64.RawURLEncoding.EncodeToString(stateBytes),
		RedirectURI:   cfg.RedirectURI(),
		Scopes:        scopes,
		ForceConsent:  forceConsent,
		CreatedAt:     time.Now(),
	}, nil
}

// MergeScopes unions the given scope sets, preserving first-seen order and
// dropping duplicates and empty entries.
func MergeScopes(sets ...[]string) []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, set := range sets {
		for _, scope := range set {
			if scope == "" {
				continue
			}
			if _, ok := seen[scope]; ok {
				continue
			}
			seen[scope] = struct{}{}
			merged = append(merged, scope)
		}
	}
	return merged
}
