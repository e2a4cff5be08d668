// internal/shopify/broker.go
//
// The token broker: the privileged OAuth exchanges done server-side so the
// client secret never reaches a browser or device. All exchanges hit the
// token endpoint from the cached openid-configuration document and
// authenticate with HTTP Basic auth built from the registered client
// credentials.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"accountgw/pkg/apierr"
	"accountgw/pkg/metrics"
)

// minVerifierLen is the RFC 7636 lower bound for a PKCE code verifier.
const minVerifierLen = 43

var redirectPattern = regexp.MustCompile(`^https?://`)

// TokenPair is the customer token set produced by an authorization-code or
// refresh-token exchange. Mirrors the token endpoint's JSON.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// Identity is a verified customer identity.
type Identity struct {
	CustomerID string
	Email      string
}

func (c *Client) requireOAuthConfig() error {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return apierr.Configuration("SHOPIFY_CLIENT_ID and SHOPIFY_CLIENT_SECRET are required")
	}
	return nil
}

// ExchangeCode swaps an authorization code plus PKCE verifier for a customer
// token pair. Input is validated before any network I/O.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenPair, error) {
	if err := c.requireOAuthConfig(); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	redirectURI = strings.TrimSpace(redirectURI)
	if code == "" {
		return nil, apierr.Validation("code cannot be empty")
	}
	if len(codeVerifier) < minVerifierLen {
		return nil, apierr.Validation("codeVerifier must be at least %d characters", minVerifierLen)
	}
	if !redirectPattern.MatchString(redirectURI) {
		return nil, apierr.Validation("Invalid redirect_uri")
	}

	doc, err := c.Discovery(ctx, DiscoveryOpenID)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("redirect_uri", redirectURI)
	form.Set("code", code)
	form.Set("code_verifier", codeVerifier)
	return c.postTokenEndpoint(ctx, doc.TokenEndpoint, form, "authorization_code")
}

// Refresh rotates a customer token pair from its refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := c.requireOAuthConfig(); err != nil {
		return nil, err
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, apierr.Validation("refreshToken cannot be empty")
	}

	doc, err := c.Discovery(ctx, DiscoveryOpenID)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.cfg.ClientID)
	return c.postTokenEndpoint(ctx, doc.TokenEndpoint, form, "refresh_token")
}

const identityQuery = `query {
  customer {
    id
    emailAddress { emailAddress }
  }
}`

// Verify resolves an access token to a customer identity via an
// introspection query against the Customer Account API. A missing customer
// in the payload, or any GraphQL error, rejects the token.
func (c *Client) Verify(ctx context.Context, accessToken string) (Identity, error) {
	if err := c.requireOAuthConfig(); err != nil {
		return Identity{}, err
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Identity{}, apierr.Validation("accessToken required")
	}

	env, err := c.CustomerGraphQL(ctx, accessToken, identityQuery, nil)
	if err != nil {
		return Identity{}, &apierr.AuthError{Msg: err.Error()}
	}
	var payload struct {
		Customer *struct {
			ID           string `json:"id"`
			EmailAddress *struct {
				EmailAddress string `json:"emailAddress"`
			} `json:"emailAddress"`
		} `json:"customer"`
	}
	if env.Data != nil {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return Identity{}, &apierr.AuthError{Msg: "invalid or expired token"}
		}
	}
	if payload.Customer == nil {
		msg := env.FirstErrorMessage()
		if msg == "" {
			msg = "invalid or expired token"
		}
		return Identity{}, &apierr.AuthError{Msg: msg}
	}
	id := Identity{CustomerID: payload.Customer.ID}
	if payload.Customer.EmailAddress != nil {
		id.Email = payload.Customer.EmailAddress.EmailAddress
	}
	return id, nil
}

// postTokenEndpoint performs one form POST against the OAuth token endpoint
// with Basic client authentication and decodes the token pair.
func (c *Client) postTokenEndpoint(ctx context.Context, endpoint string, form url.Values, grant string) (*TokenPair, error) {
	if endpoint == "" {
		return nil, &apierr.UpstreamError{Msg: "openid-configuration document has no token_endpoint"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues(grant, "transport_error").Inc()
		return nil, &apierr.AuthError{Msg: fmt.Sprintf("token request failed: %v", err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues(grant, "transport_error").Inc()
		return nil, &apierr.AuthError{Msg: fmt.Sprintf("token response unreadable: %v", err)}
	}
	if resp.StatusCode/100 != 2 {
		metrics.TokenExchanges.WithLabelValues(grant, "rejected").Inc()
		return nil, &apierr.AuthError{
			Msg:    fmt.Sprintf("%s exchange failed", grant),
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}
	var pair TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		metrics.TokenExchanges.WithLabelValues(grant, "bad_shape").Inc()
		return nil, &apierr.AuthError{Msg: fmt.Sprintf("token response not JSON: %v", err)}
	}
	if pair.AccessToken == "" {
		metrics.TokenExchanges.WithLabelValues(grant, "bad_shape").Inc()
		return nil, &apierr.AuthError{Msg: "token response missing access_token"}
	}
	metrics.TokenExchanges.WithLabelValues(grant, "ok").Inc()
	return &pair, nil
}
