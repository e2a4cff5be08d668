// internal/shopify/discovery.go
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"accountgw/pkg/apierr"
)

// DiscoveryKind selects one of the two well-known documents the shop serves.
type DiscoveryKind string

const (
	DiscoveryOpenID      DiscoveryKind = "openid-configuration"
	DiscoveryCustomerAPI DiscoveryKind = "customer-account-api"
)

// DiscoveryDocument is the subset of fields the gateway consumes. Immutable
// once fetched.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer,omitempty"`
	AuthorizationEndpoint string `json:"authorization_endpoint,omitempty"`
	TokenEndpoint         string `json:"token_endpoint,omitempty"`
	GraphQLAPI            string `json:"graphql_api,omitempty"`
}

type cachedDiscovery struct {
	doc       DiscoveryDocument
	fetchedAt time.Time
}

// Discovery returns the well-known document of the given kind, fetching it
// at most once per TTL window. Concurrent misses coalesce into a single
// upstream GET. The TTL guards against the identity provider rotating its
// endpoints under a long-running process.
func (c *Client) Discovery(ctx context.Context, kind DiscoveryKind) (DiscoveryDocument, error) {
	c.discMu.Lock()
	if e, ok := c.discovery[kind]; ok && c.now().Sub(e.fetchedAt) < c.cfg.DiscoveryTTL {
		c.discMu.Unlock()
		return e.doc, nil
	}
	c.discMu.Unlock()

	v, err, _ := c.discSF.Do(string(kind), func() (any, error) {
		doc, err := c.fetchDiscovery(ctx, kind)
		if err != nil {
			return DiscoveryDocument{}, err
		}
		c.discMu.Lock()
		c.discovery[kind] = cachedDiscovery{doc: doc, fetchedAt: c.now()}
		c.discMu.Unlock()
		return doc, nil
	})
	if err != nil {
		return DiscoveryDocument{}, err
	}
	return v.(DiscoveryDocument), nil
}

func (c *Client) fetchDiscovery(ctx context.Context, kind DiscoveryKind) (DiscoveryDocument, error) {
	url := fmt.Sprintf("%s/.well-known/%s", c.baseURL(), kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return DiscoveryDocument{}, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return DiscoveryDocument{}, &apierr.UpstreamError{Msg: fmt.Sprintf("failed to fetch %s: %v", kind, err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return DiscoveryDocument{}, &apierr.UpstreamError{Msg: fmt.Sprintf("failed to read %s response: %v", kind, err)}
	}
	if resp.StatusCode/100 != 2 {
		return DiscoveryDocument{}, &apierr.UpstreamError{
			Msg:    fmt.Sprintf("failed to fetch %s", kind),
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}
	var doc DiscoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return DiscoveryDocument{}, &apierr.UpstreamError{Msg: fmt.Sprintf("invalid %s document: %v", kind, err)}
	}
	c.log.Debugw("discovery document fetched", "kind", string(kind))
	return doc, nil
}
