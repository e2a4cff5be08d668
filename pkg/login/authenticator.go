// pkg/login/authenticator.go
package login

import (
	"context"

	"accountgw/pkg/backend"
	"accountgw/pkg/session"
)

// Authenticator binds the PKCE engine, the session store and the
// authenticated request layer into the surface a UI talks to:
// login, callback completion, logout, refresh, and the current state.
type Authenticator struct {
	engine *Engine
	client *backend.Client
	store  *session.Store
}

func NewAuthenticator(engine *Engine, client *backend.Client) *Authenticator {
	return &Authenticator{
		engine: engine,
		client: client,
		store:  client.Store(),
	}
}

// BeginLogin starts a fresh login attempt and returns the authorization URL
// the user must visit.
func (a *Authenticator) BeginLogin(ctx context.Context) (string, error) {
	return a.engine.Begin(ctx)
}

// CompleteLogin finishes a login from the callback's code and state.
func (a *Authenticator) CompleteLogin(ctx context.Context, code, state string) error {
	return a.engine.Complete(ctx, code, state)
}

// Logout drops the token set and any pending login attempt.
func (a *Authenticator) Logout() {
	a.store.Clear()
	a.engine.ClearState()
}

// Refresh forces a token rotation.
func (a *Authenticator) Refresh(ctx context.Context) error {
	return a.client.Refresh(ctx)
}

// IsAuthenticated reports whether a usable session exists, refreshing an
// expired access token when a refresh token is available.
func (a *Authenticator) IsAuthenticated(ctx context.Context) bool {
	if a.store.AccessToken() == "" {
		return false
	}
	if !a.store.Expired() {
		return true
	}
	return a.client.Refresh(ctx) == nil
}

// AccessToken returns the current access token, "" when logged out.
func (a *Authenticator) AccessToken() string {
	return a.store.AccessToken()
}
