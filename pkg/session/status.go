// SPDX-FileCopyrightText: Copyright 2025 Lantern Labs, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session contains the orchestrating state machine of the auth
// core. The controller owns login, logout, token refresh and scope-upgrade
// flows and publishes every state transition to the hosting application.
package session

import (
	"time"

	"github.com/lanternhq/authkit/pkg/credentials"
	"github.com/lanternhq/authkit/pkg/oauth"
)

// State identifies the session state machine's position.
type State string

const (
	// StateLoggedOut means no session exists.
	StateLoggedOut State = "logged_out"

	// StateAuthenticating means a browser login flow is in progress.
	StateAuthenticating State = "authenticating"

	// StateLoggedIn means a valid session exists.
	StateLoggedIn State = "logged_in"

	// StateError means the last operation failed; any prior session is
	// untouched.
	StateError State = "error"
)

// Status is the tagged union broadcast to the hosting application on every
// transition. Exactly one Status is current at a time; it is the only
// interface the rest of the application needs.
type Status struct {
	State    State
	Provider string

	// Populated for StateLoggedIn.
	AccessToken   string
	IDToken       string
	GrantedScopes []string
	ExpiresAt     time.Time
	Identity      *oauth.Identity

	// Populated for StateError.
	Err error
}

// LoggedOut reports whether the status is StateLoggedOut.
func (s Status) LoggedOut() bool { return s.State == StateLoggedOut }

// LoggedIn reports whether the status is StateLoggedIn.
func (s Status) LoggedIn() bool { return s.State == StateLoggedIn }

func loggedOutStatus() Status {
	return Status{State: StateLoggedOut}
}

func authenticatingStatus(provider string) Status {
	return Status{State: StateAuthenticating, Provider: provider}
}

func loggedInStatus(session *credentials.Session) Status {
	return Status{
		State:         StateLoggedIn,
		Provider:      session.Provider,
		AccessToken:   session.AccessToken,
		IDToken:       session.IDToken,
		GrantedScopes: session.GrantedScopes,
		ExpiresAt:     session.ExpiresAt,
		Identity:      session.Identity,
	}
}

func errorStatus(provider string, err error) Status {
	return Status{State: StateError, Provider: provider, Err: err}
}
