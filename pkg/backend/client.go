// Package backend is the client-side authenticated request layer. Every
// data call goes through the same policy: make sure the access token is
// still valid, attach it, and on a 401 perform exactly one refresh followed
// by exactly one retry. A truly dead refresh token therefore fails fast
// instead of looping, and the caller decides what to do about the resulting
// ErrNotAuthenticated (this layer never navigates anywhere).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"accountgw/pkg/logger"
	"accountgw/pkg/session"
)

// ErrNotAuthenticated is returned when no usable credential remains: the
// local token set has been cleared and the user must log in again.
var ErrNotAuthenticated = errors.New("not authenticated")

// TokenPair mirrors the broker's token response.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// VerifyResult is the broker's verify response.
type VerifyResult struct {
	Success    bool   `json:"success"`
	CustomerID string `json:"customerId"`
	Email      string `json:"email"`
}

type Config struct {
	// BaseURL of the account-service broker.
	BaseURL string
	// ShopDomain and APIVersion locate the shop's own endpoints (customer
	// account GraphQL via discovery, storefront GraphQL).
	ShopDomain string
	APIVersion string
	// ShopBaseURL overrides https://<ShopDomain> (tests).
	ShopBaseURL string
}

type Client struct {
	cfg   Config
	httpc *http.Client
	store *session.Store
	log   logger.Sugared

	mu               sync.Mutex
	customerEndpoint string
	storefrontToken  string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = log }
}

func New(cfg Config, store *session.Store, opts ...Option) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-01"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 30 * time.Second},
		store: store,
		log:   logger.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) shopBaseURL() string {
	if c.cfg.ShopBaseURL != "" {
		return strings.TrimRight(c.cfg.ShopBaseURL, "/")
	}
	return "https://" + c.cfg.ShopDomain
}

// Store exposes the session store backing this client.
func (c *Client) Store() *session.Store { return c.store }

// ExchangeCode trades an authorization code and PKCE verifier for a token
// pair through the broker. The caller stores the result.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenPair, error) {
	var pair TokenPair
	err := c.postJSON(ctx, "/api/auth/token", map[string]string{
		"code":         code,
		"codeVerifier": codeVerifier,
		"redirect_uri": redirectURI,
	}, &pair)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// Refresh rotates the stored token pair through the broker. A 4xx answer
// means the platform rejected the refresh token, which will not recover on
// its own, so the local tokens are cleared. Transport errors and 5xx leave
// the session intact: the next call may succeed.
func (c *Client) Refresh(ctx context.Context) error {
	refresh := c.store.RefreshToken()
	if refresh == "" {
		c.store.Clear()
		return ErrNotAuthenticated
	}
	payload, err := json.Marshal(map[string]string{"refreshToken": refresh})
	if err != nil {
		return err
	}
	body, status, err := c.send(ctx, http.MethodPost, c.cfg.BaseURL+"/api/auth/refresh", payload, "", nil)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	if status/100 == 4 {
		c.store.Clear()
		return fmt.Errorf("%w: %s", ErrNotAuthenticated, errorMessage(body, status))
	}
	if status/100 != 2 {
		return errors.New(errorMessage(body, status))
	}
	var pair TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		return err
	}
	if pair.RefreshToken == "" {
		// The platform may rotate only the access token.
		pair.RefreshToken = refresh
	}
	expiresIn := pair.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	return c.store.SetTokens(pair.AccessToken, pair.RefreshToken, expiresIn)
}

// Verify asks the broker to resolve the current access token to an identity.
func (c *Client) Verify(ctx context.Context) (VerifyResult, error) {
	var out VerifyResult
	body, status, err := c.authedDo(ctx, http.MethodPost, c.cfg.BaseURL+"/api/auth/verify", []byte(`{}`), nil)
	if err != nil {
		return out, err
	}
	if status/100 != 2 {
		return out, errors.New(errorMessage(body, status))
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Do performs an authenticated JSON call against the broker, decoding the
// response into out when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = b
	}
	respBody, status, err := c.authedDo(ctx, method, c.cfg.BaseURL+path, body, nil)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return errors.New(errorMessage(respBody, status))
	}
	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}

// callState drives the refresh-and-retry sequence. The transitions make the
// "never retry twice" bound structural: Retrying has no edge back to
// RefreshPending.
type callState int

const (
	stateCalling callState = iota
	stateRefreshPending
	stateRetrying
	stateDone
)

// authedDo runs one authenticated HTTP call under the session policy.
func (c *Client) authedDo(ctx context.Context, method, url string, payload []byte, headers map[string]string) ([]byte, int, error) {
	if c.store.Expired() {
		if err := c.Refresh(ctx); err != nil {
			return nil, 0, err
		}
	}
	token := c.store.AccessToken()
	if token == "" {
		return nil, 0, ErrNotAuthenticated
	}

	var (
		body   []byte
		status int
		err    error
	)
	state := stateCalling
	for state != stateDone {
		switch state {
		case stateCalling:
			body, status, err = c.send(ctx, method, url, payload, token, headers)
			if err != nil {
				return nil, 0, err
			}
			if status == http.StatusUnauthorized {
				state = stateRefreshPending
			} else {
				state = stateDone
			}
		case stateRefreshPending:
			if err := c.Refresh(ctx); err != nil {
				return nil, 0, err
			}
			token = c.store.AccessToken()
			state = stateRetrying
		case stateRetrying:
			body, status, err = c.send(ctx, method, url, payload, token, headers)
			if err != nil {
				return nil, 0, err
			}
			if status == http.StatusUnauthorized {
				c.store.Clear()
				return nil, 0, ErrNotAuthenticated
			}
			state = stateDone
		}
	}
	return body, status, nil
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte, bearer string, headers map[string]string) ([]byte, int, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// postJSON is an unauthenticated broker POST (token and refresh exchanges
// carry their credential in the body, not a bearer header).
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	body, status, err := c.send(ctx, http.MethodPost, c.cfg.BaseURL+path, b, "", nil)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return errors.New(errorMessage(body, status))
	}
	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}

// errorMessage extracts the broker's {"error": msg} body, falling back to
// the bare status code.
func errorMessage(body []byte, status int) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return fmt.Sprintf("request failed: %d", status)
}
