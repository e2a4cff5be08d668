// Package login implements the PKCE authorization-code flow from the
// client's side: challenge generation, authorization URL construction, and
// callback completion through the broker. The verifier and state live in
// transient storage for exactly one login attempt and are erased on every
// outcome, success or failure.
package login

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"accountgw/pkg/backend"
	"accountgw/pkg/session"
)

// ErrInvalidState rejects a callback whose state does not match the one this
// client generated, or that arrives without a pending login attempt.
var ErrInvalidState = errors.New("invalid login state")

const (
	keyVerifier = "pkce_code_verifier"
	keyState    = "pkce_state"

	defaultScope = "openid email customer-account-api:full"
)

type Config struct {
	ShopDomain  string
	ClientID    string
	RedirectURI string
	Scope       string
	// ShopBaseURL overrides https://<ShopDomain> (tests).
	ShopBaseURL string
}

// Engine drives one login attempt at a time.
type Engine struct {
	cfg       Config
	transient session.Storage
	store     *session.Store
	broker    *backend.Client
	httpc     *http.Client
}

func NewEngine(cfg Config, transient session.Storage, broker *backend.Client) *Engine {
	if cfg.Scope == "" {
		cfg.Scope = defaultScope
	}
	return &Engine{
		cfg:       cfg,
		transient: transient,
		store:     broker.Store(),
		broker:    broker,
		httpc:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *Engine) shopBaseURL() string {
	if e.cfg.ShopBaseURL != "" {
		return strings.TrimRight(e.cfg.ShopBaseURL, "/")
	}
	return "https://" + e.cfg.ShopDomain
}

// Begin creates a fresh verifier/challenge/state triple, parks it in
// transient storage and returns the authorization URL to navigate to.
// Control leaves the application once the caller follows it.
func (e *Engine) Begin(ctx context.Context) (string, error) {
	if e.cfg.ClientID == "" {
		return "", errors.New("missing client id")
	}
	verifier := oauth2.GenerateVerifier()
	challenge := oauth2.S256ChallengeFromVerifier(verifier)
	state, err := randomState()
	if err != nil {
		return "", err
	}
	if err := e.transient.Set(keyVerifier, verifier); err != nil {
		return "", err
	}
	if err := e.transient.Set(keyState, state); err != nil {
		return "", err
	}

	authzEndpoint, err := e.authorizationEndpoint(ctx)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("client_id", e.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", e.cfg.RedirectURI)
	q.Set("scope", e.cfg.Scope)
	q.Set("state", state)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	return fmt.Sprintf("%s?%s", authzEndpoint, q.Encode()), nil
}

// Complete validates the callback and finishes the exchange through the
// broker. State mismatch, missing code and missing verifier all fail before
// any network call; every exit path clears the pending PKCE state.
func (e *Engine) Complete(ctx context.Context, code, state string) error {
	savedState, _ := e.transient.Get(keyState)
	verifier, _ := e.transient.Get(keyVerifier)
	if code == "" || state != savedState || verifier == "" {
		e.ClearState()
		switch {
		case code == "":
			return fmt.Errorf("%w: missing authorization code", ErrInvalidState)
		case state != savedState:
			return fmt.Errorf("%w: state mismatch", ErrInvalidState)
		default:
			return fmt.Errorf("%w: no login attempt in progress", ErrInvalidState)
		}
	}

	pair, err := e.broker.ExchangeCode(ctx, code, verifier, e.cfg.RedirectURI)
	e.ClearState()
	if err != nil {
		return err
	}
	expiresIn := pair.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	return e.store.SetTokens(pair.AccessToken, pair.RefreshToken, expiresIn)
}

// ClearState erases any pending verifier and state.
func (e *Engine) ClearState() {
	_ = e.transient.Delete(keyVerifier)
	_ = e.transient.Delete(keyState)
}

func (e *Engine) authorizationEndpoint(ctx context.Context) (string, error) {
	url := e.shopBaseURL() + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get OAuth config: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("failed to get OAuth config: %d", resp.StatusCode)
	}
	var doc struct {
		AuthorizationEndpoint string `json:"authorization_endpoint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", err
	}
	if doc.AuthorizationEndpoint == "" {
		return "", errors.New("openid-configuration has no authorization_endpoint")
	}
	return doc.AuthorizationEndpoint, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
