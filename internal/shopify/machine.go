// internal/shopify/machine.go
//
// Machine credentials: the admin access token (client-credentials grant,
// refreshed with a safety margin) and the storefront access token (listed or
// created once, then kept for the process lifetime — it is a long-lived API
// key by platform convention).
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"accountgw/pkg/apierr"
	"accountgw/pkg/metrics"
)

// adminTokenMargin is how long before expiry the cached admin token is
// treated as stale.
const adminTokenMargin = 60 * time.Second

type machineToken struct {
	value     string
	expiresAt time.Time
}

// AdminToken returns a valid Admin API access token. A configured static
// token short-circuits the grant entirely (legacy deployments). Otherwise
// the cached token is reused until 60s before expiry, then replaced via a
// client-credentials grant.
func (c *Client) AdminToken(ctx context.Context) (string, error) {
	if c.cfg.AdminToken != "" {
		return c.cfg.AdminToken, nil
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", apierr.Configuration("SHOPIFY_CLIENT_ID and SHOPIFY_CLIENT_SECRET are required")
	}

	c.tokMu.Lock()
	if c.adminToken.value != "" && c.now().Before(c.adminToken.expiresAt.Add(-adminTokenMargin)) {
		tok := c.adminToken.value
		c.tokMu.Unlock()
		metrics.MachineTokenCache.WithLabelValues("admin", "hit").Inc()
		return tok, nil
	}
	c.tokMu.Unlock()
	metrics.MachineTokenCache.WithLabelValues("admin", "miss").Inc()

	doc, err := c.Discovery(ctx, DiscoveryOpenID)
	if err != nil {
		return "", err
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	pair, err := c.postTokenEndpoint(ctx, doc.TokenEndpoint, form, "client_credentials")
	if err != nil {
		return "", err
	}

	c.tokMu.Lock()
	c.adminToken = machineToken{
		value:     pair.AccessToken,
		expiresAt: c.now().Add(time.Duration(pair.ExpiresIn) * time.Second),
	}
	c.tokMu.Unlock()
	c.log.Infow("admin access token refreshed", "expires_in", pair.ExpiresIn)
	return pair.AccessToken, nil
}

// StorefrontToken returns the shop's storefront access token, acquiring it
// on first use: list existing delegate tokens via the Admin REST API, fall
// back to creating one through the Admin GraphQL mutation when listing
// yields nothing or fails. The create fallback fires on any listing failure,
// including transient ones, so duplicates are possible; preserved behavior.
func (c *Client) StorefrontToken(ctx context.Context) (string, error) {
	c.tokMu.Lock()
	if c.storefrontToken != "" {
		tok := c.storefrontToken
		c.tokMu.Unlock()
		metrics.MachineTokenCache.WithLabelValues("storefront", "hit").Inc()
		return tok, nil
	}
	c.tokMu.Unlock()
	metrics.MachineTokenCache.WithLabelValues("storefront", "miss").Inc()

	tok, err := c.listStorefrontTokens(ctx)
	if err != nil || tok == "" {
		if err != nil {
			c.log.Warnw("storefront token listing failed, creating a new one", "err", err)
		}
		tok, err = c.createStorefrontToken(ctx)
		if err != nil {
			return "", err
		}
	}

	c.tokMu.Lock()
	c.storefrontToken = tok
	c.tokMu.Unlock()
	return tok, nil
}

func (c *Client) listStorefrontTokens(ctx context.Context) (string, error) {
	adminTok, err := c.AdminToken(ctx)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/admin/api/%s/storefront_access_tokens.json", c.baseURL(), c.cfg.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Shopify-Access-Token", adminTok)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &apierr.UpstreamError{Msg: fmt.Sprintf("storefront token listing failed: %v", err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &apierr.UpstreamError{Msg: fmt.Sprintf("storefront token listing failed: %v", err)}
	}
	if resp.StatusCode/100 != 2 {
		return "", &apierr.UpstreamError{Msg: "storefront token listing failed", Status: resp.StatusCode, Body: string(body)}
	}
	var parsed struct {
		StorefrontAccessTokens []struct {
			AccessToken string `json:"access_token"`
		} `json:"storefront_access_tokens"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &apierr.UpstreamError{Msg: fmt.Sprintf("storefront token listing unreadable: %v", err)}
	}
	if len(parsed.StorefrontAccessTokens) == 0 {
		return "", nil
	}
	return parsed.StorefrontAccessTokens[0].AccessToken, nil
}

const storefrontTokenCreateMutation = `mutation storefrontAccessTokenCreate($input: StorefrontAccessTokenInput!) {
  storefrontAccessTokenCreate(input: $input) {
    storefrontAccessToken { accessToken }
    userErrors { field message }
  }
}`

func (c *Client) createStorefrontToken(ctx context.Context) (string, error) {
	env, err := c.AdminGraphQL(ctx, storefrontTokenCreateMutation, map[string]any{
		"input": map[string]any{"title": "account-gateway"},
	})
	if err != nil {
		return "", err
	}
	var payload struct {
		StorefrontAccessTokenCreate struct {
			StorefrontAccessToken *struct {
				AccessToken string `json:"accessToken"`
			} `json:"storefrontAccessToken"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"storefrontAccessTokenCreate"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return "", &apierr.UpstreamError{Msg: fmt.Sprintf("storefront token creation unreadable: %v", err)}
	}
	if msgs := JoinUserErrors(payload.StorefrontAccessTokenCreate.UserErrors); msgs != "" {
		return "", &apierr.UpstreamError{Msg: "storefront token creation failed: " + msgs, CallerFault: false}
	}
	st := payload.StorefrontAccessTokenCreate.StorefrontAccessToken
	if st == nil || strings.TrimSpace(st.AccessToken) == "" {
		return "", &apierr.UpstreamError{Msg: "storefront token creation returned no token"}
	}
	return st.AccessToken, nil
}
