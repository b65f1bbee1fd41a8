// SPDX-FileCopyrightText: Copyright 2025 Lantern Labs, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lanternhq/authkit/pkg/credentials"
	"github.com/lanternhq/authkit/pkg/discovery"
	"github.com/lanternhq/authkit/pkg/logger"
	"github.com/lanternhq/authkit/pkg/oauth"
	"github.com/lanternhq/authkit/pkg/providers"
	"github.com/lanternhq/authkit/pkg/scopes"
)

// refreshBuffer is the safety margin before expiry at which the access
// token is refreshed.
const refreshBuffer = 60 * time.Second

var (
	// ErrNoSession is returned by token accessors when no session exists.
	ErrNoSession = errors.New("no active session")

	// ErrLoginCancelled is returned when a login flow is superseded by a
	// newer login or a logout before it completed.
	ErrLoginCancelled = errors.New("login cancelled")

	// ErrReauthRequired is returned when the access token has expired and
	// no refresh token is stored, so only a new browser login can help.
	ErrReauthRequired = errors.New("re-authentication required")
)

// Options configures a Controller. Registry, Credentials and Scopes are
// required; the remaining collaborators default to production
// implementations.
type Options struct {
	Registry    *providers.Registry
	Credentials *credentials.Store
	Scopes      *scopes.Manager

	Discovery *discovery.Client
	Exchange  *oauth.ExchangeClient

	// OpenBrowser opens the authorization URL; defaults to the OS browser.
	OpenBrowser func(url string) error
}

// Controller is the session state machine. It is the single source of
// truth for "am I logged in, as whom, with which tokens", and the single
// point translating protocol failures into status transitions.
//
// All blocking methods take a context and may be called from any
// goroutine; the hosting application is expected to call them off its
// interactive thread and observe transitions via Subscribe.
type Controller struct {
	registry    *providers.Registry
	discovery   *discovery.Client
	exchange    *oauth.ExchangeClient
	credentials *credentials.Store
	scopes      *scopes.Manager
	openBrowser func(string) error
	notifier    *notifier

	// refreshGroup coalesces concurrent refreshes per provider so two
	// refresh-token grants never race and invalidate each other.
	refreshGroup singleflight.Group

	mu         sync.Mutex
	status     Status
	provider   string // provider of the active session, "" when logged out
	attempt    *oauth.Attempt
	generation uint64
	callback   *oauth.CallbackServer
	boundPort  int
}

// NewController creates a session controller in the LoggedOut state.
func NewController(opts Options) (*Controller, error) {
	if opts.Registry == nil || opts.Credentials == nil || opts.Scopes == nil {
		return nil, errors.New("registry, credential store and scope manager are required")
	}

	c := &Controller{
		registry:    opts.Registry,
		discovery:   opts.Discovery,
		exchange:    opts.Exchange,
		credentials: opts.Credentials,
		scopes:      opts.Scopes,
		openBrowser: opts.OpenBrowser,
		notifier:    newNotifier(),
		status:      loggedOutStatus(),
	}
	if c.discovery == nil {
		c.discovery = discovery.NewClient(nil)
	}
	if c.exchange == nil {
		c.exchange = oauth.NewExchangeClient(nil)
	}
	if c.openBrowser == nil {
		c.openBrowser = oauth.OpenBrowser
	}
	return c, nil
}

// Subscribe returns a channel of status transitions plus a cancel
// function. The current status is delivered immediately.
func (c *Controller) Subscribe() (<-chan Status, func()) {
	c.mu.Lock()
	current := c.status
	c.mu.Unlock()

	ch, cancel := c.notifier.subscribe()
	c.notifier.publish(current)
	return ch, cancel
}

// Current returns the current session status.
func (c *Controller) Current() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close shuts down the callback listener.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	callback := c.callback
	c.callback = nil
	c.boundPort = 0
	c.mu.Unlock()

	if callback == nil {
		return nil
	}
	return callback.Shutdown(ctx)
}

// Login runs the browser-based authorization-code flow for the provider.
// Any in-flight attempt is discarded first; on failure the controller
// transitions to StateError and any prior session is left untouched.
func (c *Controller) Login(ctx context.Context, provider string) error {
	return c.login(ctx, provider, nil, false)
}

// RequestAdditionalScopes merges the scopes into the provider's persisted
// granted set and re-runs the login flow with a forced consent prompt so
// the provider issues tokens for the union.
func (c *Controller) RequestAdditionalScopes(ctx context.Context, extraScopes ...string) error {
	c.mu.Lock()
	provider := c.provider
	c.mu.Unlock()
	if provider == "" {
		return ErrNoSession
	}

	if _, err := c.scopes.Grant(provider, extraScopes...); err != nil {
		logger.Warnf("failed to persist granted scopes: %v", err)
	}
	return c.login(ctx, provider, extraScopes, true)
}

func (c *Controller) login(ctx context.Context, provider string, extraScopes []string, forceConsent bool) error {
	cfg, err := c.registry.Get(provider)
	if err != nil {
		return err
	}

	gen := c.beginAttempt(provider)

	doc, err := c.discovery.Fetch(ctx, cfg)
	if err != nil {
		return c.failAttempt(gen, provider, err)
	}

	if err := c.ensureListener(cfg.Port()); err != nil {
		return c.failAttempt(gen, provider, err)
	}

	requested := oauth.MergeScopes(cfg.BaseScopes, c.scopes.Granted(provider), extraScopes)
	attempt, err := oauth.NewAttempt(cfg, requested, forceConsent)
	if err != nil {
		return c.failAttempt(gen, provider, err)
	}

	// Arming must happen under the same lock as the generation check, or a
	// superseded login could arm after its successor and close out the
	// successor's pending channel.
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return ErrLoginCancelled
	}
	c.attempt = attempt
	callback := c.callback
	results := callback.Arm(attempt)
	c.mu.Unlock()

	authURL := oauth.AuthCodeURL(cfg, doc.AuthorizationEndpoint, attempt)
	if err := c.openBrowser(authURL); err != nil {
		// The attempt stays armed; the user can still open the URL.
		logger.Warnf("failed to open browser: %v", err)
		logger.Infof("please open this URL in your browser: %s", authURL)
	} else {
		logger.Debugf("opened browser for %s authorization", provider)
	}

	var result oauth.CallbackResult
	select {
	case res, ok := <-results:
		if !ok {
			return ErrLoginCancelled
		}
		result = res
	case <-ctx.Done():
		callback.Disarm(attempt.ID)
		return c.failAttempt(gen, provider, fmt.Errorf("login aborted: %w", ctx.Err()))
	}

	if result.Err != nil {
		return c.failAttempt(gen, provider, result.Err)
	}

	set, err := c.exchange.ExchangeCode(ctx, cfg, doc.TokenEndpoint, attempt, result.Code)
	if err != nil {
		return c.failAttempt(gen, provider, err)
	}

	return c.completeAttempt(gen, cfg, set)
}

// beginAttempt discards any in-flight attempt and moves the machine to
// StateAuthenticating. It returns the generation the new attempt runs
// under; any async result arriving for an older generation is discarded.
func (c *Controller) beginAttempt(provider string) uint64 {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.attempt != nil && c.callback != nil {
		c.callback.Disarm(c.attempt.ID)
	}
	c.attempt = nil
	c.status = authenticatingStatus(provider)
	c.mu.Unlock()

	c.notifier.publish(authenticatingStatus(provider))
	return gen
}

// failAttempt transitions to StateError unless the attempt has been
// superseded. The prior session, if any, is untouched.
func (c *Controller) failAttempt(gen uint64, provider string, cause error) error {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		logger.Debugf("discarding failure of superseded login attempt: %v", cause)
		return ErrLoginCancelled
	}
	c.attempt = nil
	c.status = errorStatus(provider, cause)
	c.mu.Unlock()

	logger.Warnf("login failed for %s: %v", provider, cause)
	c.notifier.publish(errorStatus(provider, cause))
	return cause
}

// completeAttempt persists the token set and moves to StateLoggedIn.
func (c *Controller) completeAttempt(gen uint64, cfg providers.Config, set *oauth.TokenSet) error {
	// Refresh token must reach secure storage before the session is
	// marked logged in; a storage failure is a warning, not a blocker.
	if err := c.credentials.Save(cfg, set, false); err != nil {
		logger.Warnf("%v", err)
	}
	if _, err := c.scopes.Grant(cfg.ID, set.GrantedScopes...); err != nil {
		logger.Warnf("failed to persist granted scopes: %v", err)
	}

	session, ok := c.credentials.Session(cfg.ID)
	if !ok {
		return c.failAttempt(gen, cfg.ID, errors.New("session state missing after save"))
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		// Logged out (or superseded) while the exchange was in flight:
		// discard the result and undo the save.
		if err := c.credentials.Clear(cfg.ID); err != nil {
			logger.Warnf("%v", err)
		}
		return ErrLoginCancelled
	}
	c.attempt = nil
	c.provider = cfg.ID
	c.status = loggedInStatus(session)
	c.mu.Unlock()

	logger.Infof("logged in to %s", cfg.ID)
	c.notifier.publish(loggedInStatus(session))
	return nil
}

// Logout clears the session and secure storage for the current provider
// and transitions to StateLoggedOut. It is idempotent and safe to call
// from any state; results of in-flight operations are discarded.
func (c *Controller) Logout(_ context.Context) error {
	c.mu.Lock()
	c.generation++
	if c.attempt != nil && c.callback != nil {
		c.callback.Disarm(c.attempt.ID)
	}
	c.attempt = nil
	provider := c.provider
	c.provider = ""
	c.status = loggedOutStatus()
	c.mu.Unlock()

	if provider != "" {
		if err := c.credentials.Clear(provider); err != nil {
			logger.Warnf("%v", err)
		}
	}

	c.notifier.publish(loggedOutStatus())
	return nil
}

// AccessToken returns a valid access token for the current session,
// refreshing it first when it is within the safety buffer of expiry. A
// refresh rejected as invalid_grant logs the session out and returns the
// refresh error; transient refresh failures are returned without a token
// and without destroying session state.
func (c *Controller) AccessToken(ctx context.Context) (string, error) {
	return c.accessToken(ctx, false)
}

// AccessTokenAllowStale behaves like AccessToken but, on a transient
// refresh failure, returns the prior (expired) access token alongside the
// error as a best-effort fallback.
func (c *Controller) AccessTokenAllowStale(ctx context.Context) (string, error) {
	return c.accessToken(ctx, true)
}

func (c *Controller) accessToken(ctx context.Context, allowStale bool) (string, error) {
	c.mu.Lock()
	provider := c.provider
	c.mu.Unlock()
	if provider == "" {
		return "", ErrNoSession
	}

	session, ok := c.credentials.Session(provider)
	if !ok {
		return "", ErrNoSession
	}
	if !session.Expired(time.Now(), refreshBuffer) {
		return session.AccessToken, nil
	}

	refreshed, err := c.refresh(ctx, provider)
	if err != nil {
		if allowStale && !errors.Is(err, ErrReauthRequired) && !oauth.IsInvalidGrant(err) {
			logger.Warnf("returning stale access token for %s: %v", provider, err)
			return session.AccessToken, err
		}
		return "", err
	}
	return refreshed.AccessToken, nil
}

// refresh coalesces concurrent callers onto one refresh-token grant.
func (c *Controller) refresh(ctx context.Context, provider string) (*credentials.Session, error) {
	result, err, _ := c.refreshGroup.Do(provider, func() (any, error) {
		return c.doRefresh(ctx, provider)
	})
	if err != nil {
		return nil, err
	}
	return result.(*credentials.Session), nil
}

func (c *Controller) doRefresh(ctx context.Context, provider string) (*credentials.Session, error) {
	// A coalesced caller may arrive after the winning flight finished:
	// re-check before issuing another grant.
	if session, ok := c.credentials.Session(provider); ok && !session.Expired(time.Now(), refreshBuffer) {
		return session, nil
	}

	cfg, err := c.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	refreshToken, found, err := c.credentials.LoadRefreshToken(provider)
	if err != nil {
		logger.Warnf("%v", err)
		return nil, ErrReauthRequired
	}
	if !found {
		return nil, ErrReauthRequired
	}

	doc, err := c.discovery.Fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	set, err := c.exchange.Refresh(ctx, cfg, doc.TokenEndpoint, refreshToken)
	if err != nil {
		if oauth.IsInvalidGrant(err) {
			logger.Warnf("refresh token for %s rejected, logging out: %v", provider, err)
			_ = c.Logout(ctx)
			return nil, err
		}
		logger.Warnf("transient refresh failure for %s: %v", provider, err)
		return nil, err
	}

	// Providers routinely omit the scope field on refresh responses; the
	// granted set is tracked locally and carries over.
	if len(set.GrantedScopes) == 0 {
		set.GrantedScopes = c.scopes.Granted(provider)
	}

	if err := c.credentials.Save(cfg, set, true); err != nil {
		logger.Warnf("%v", err)
	}

	session, ok := c.credentials.Session(provider)
	if !ok {
		return nil, ErrNoSession
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		// Logged out while the refresh was in flight: discard.
		if err := c.credentials.Clear(provider); err != nil {
			logger.Warnf("%v", err)
		}
		return nil, ErrNoSession
	}
	c.status = loggedInStatus(session)
	c.mu.Unlock()

	c.notifier.publish(loggedInStatus(session))
	return session, nil
}

// Resume restores a session from a stored refresh token without a browser
// flow. Returns ErrReauthRequired when no refresh token is stored.
func (c *Controller) Resume(ctx context.Context, provider string) error {
	if _, err := c.registry.Get(provider); err != nil {
		return err
	}

	_, found, err := c.credentials.LoadRefreshToken(provider)
	if err != nil {
		logger.Warnf("%v", err)
		return ErrReauthRequired
	}
	if !found {
		return ErrReauthRequired
	}

	c.mu.Lock()
	c.provider = provider
	c.mu.Unlock()

	if _, err := c.refresh(ctx, provider); err != nil {
		c.mu.Lock()
		if c.provider == provider {
			c.provider = ""
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// ensureListener binds the shared callback listener on first use. All
// providers must agree on the callback port; the listener is bound once
// and re-armed per attempt.
func (c *Controller) ensureListener(port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.callback != nil {
		if c.boundPort != port {
			return fmt.Errorf("callback listener already bound on port %d, provider requests %d", c.boundPort, port)
		}
		return nil
	}

	callback := oauth.NewCallbackServer(port)
	if err := callback.Start(); err != nil {
		return err
	}
	c.callback = callback
	c.boundPort = port
	return nil
}
