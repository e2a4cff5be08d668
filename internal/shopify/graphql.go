// internal/shopify/graphql.go
//
// Thin GraphQL POST wrappers. Each attaches the right credential for its API
// surface and normalizes transport/HTTP failures into UpstreamError.
// GraphQL-level errors[] are returned in the envelope for the caller to
// inspect; only higher-level flows convert them to responses.
//
// Caller-identity tokens (Customer Account API) are never cached here —
// every call carries the token the caller supplied. Service-identity tokens
// (admin, storefront) come from the process-wide caches.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"accountgw/pkg/apierr"
	"accountgw/pkg/metrics"
)

// GraphQLError is a single entry of a GraphQL errors[] list.
type GraphQLError struct {
	Message string `json:"message"`
}

// UserError is the platform's mutation-level validation error shape.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// JoinUserErrors renders a userErrors list as a single message, "" when empty.
func JoinUserErrors(errs []UserError) string {
	if len(errs) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Envelope is the outer GraphQL response shape. Data stays raw so each call
// site can decode into its own typed payload and fail closed on unexpected
// shapes.
type Envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// FirstErrorMessage returns the first GraphQL error message, "" when none.
func (e *Envelope) FirstErrorMessage() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Message
}

// AdminGraphQL posts to the Admin API using the cached admin token.
func (c *Client) AdminGraphQL(ctx context.Context, query string, variables map[string]any) (*Envelope, error) {
	token, err := c.AdminToken(ctx)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/admin/api/%s/graphql.json", c.baseURL(), c.cfg.APIVersion)
	return c.postGraphQL(ctx, "admin", url, query, variables, map[string]string{
		"X-Shopify-Access-Token": token,
	})
}

// CustomerGraphQL posts to the Customer Account API with the caller's own
// access token.
func (c *Client) CustomerGraphQL(ctx context.Context, accessToken, query string, variables map[string]any) (*Envelope, error) {
	doc, err := c.Discovery(ctx, DiscoveryCustomerAPI)
	if err != nil {
		return nil, err
	}
	if doc.GraphQLAPI == "" {
		return nil, &apierr.UpstreamError{Msg: "customer-account-api document has no graphql_api endpoint"}
	}
	return c.postGraphQL(ctx, "customer", doc.GraphQLAPI, query, variables, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
}

// StorefrontGraphQL posts to the Storefront API using the cached storefront
// token.
func (c *Client) StorefrontGraphQL(ctx context.Context, query string, variables map[string]any) (*Envelope, error) {
	token, err := c.StorefrontToken(ctx)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/api/%s/graphql.json", c.baseURL(), c.cfg.APIVersion)
	return c.postGraphQL(ctx, "storefront", url, query, variables, map[string]string{
		"X-Shopify-Storefront-Access-Token": token,
	})
}

func (c *Client) postGraphQL(ctx context.Context, api, url, query string, variables map[string]any, headers map[string]string) (*Envelope, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(api, "transport_error").Inc()
		return nil, &apierr.UpstreamError{Msg: fmt.Sprintf("%s GraphQL failed: %v", api, err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(api, "transport_error").Inc()
		return nil, &apierr.UpstreamError{Msg: fmt.Sprintf("%s GraphQL response unreadable: %v", api, err)}
	}
	if resp.StatusCode/100 != 2 {
		metrics.UpstreamRequests.WithLabelValues(api, "http_error").Inc()
		return nil, &apierr.UpstreamError{
			Msg:    fmt.Sprintf("%s GraphQL failed", api),
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.UpstreamRequests.WithLabelValues(api, "bad_shape").Inc()
		return nil, &apierr.UpstreamError{Msg: fmt.Sprintf("%s GraphQL response not JSON: %v", api, err)}
	}
	metrics.UpstreamRequests.WithLabelValues(api, "ok").Inc()
	return &env, nil
}
