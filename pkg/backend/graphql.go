// pkg/backend/graphql.go
//
// GraphQL calls made directly from the client: the Customer Account API
// (authenticated, full refresh-and-retry policy) and the Storefront API
// (public token handed out by the broker, no customer credential).
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

func (e *graphQLEnvelope) err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return errors.New(e.Errors[0].Message)
}

// CustomerQuery runs a query against the Customer Account API with the
// stored customer token, decoding the data payload into out.
func (c *Client) CustomerQuery(ctx context.Context, query string, variables map[string]any, out any) error {
	endpoint, err := c.customerGraphQLEndpoint(ctx)
	if err != nil {
		return err
	}
	payload, err := marshalGraphQL(query, variables)
	if err != nil {
		return err
	}
	body, status, err := c.authedDo(ctx, http.MethodPost, endpoint, payload, nil)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return errors.New(errorMessage(body, status))
	}
	return decodeGraphQL(body, out)
}

// StorefrontQuery runs a public storefront query. The storefront token is
// fetched from the broker once and kept for the client's lifetime.
func (c *Client) StorefrontQuery(ctx context.Context, query string, variables map[string]any, out any) error {
	token, err := c.fetchStorefrontToken(ctx)
	if err != nil {
		return err
	}
	payload, err := marshalGraphQL(query, variables)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/%s/graphql.json", c.shopBaseURL(), c.cfg.APIVersion)
	body, status, err := c.send(ctx, http.MethodPost, url, payload, "", map[string]string{
		"X-Shopify-Storefront-Access-Token": token,
	})
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return errors.New(errorMessage(body, status))
	}
	return decodeGraphQL(body, out)
}

func (c *Client) customerGraphQLEndpoint(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.customerEndpoint != "" {
		ep := c.customerEndpoint
		c.mu.Unlock()
		return ep, nil
	}
	c.mu.Unlock()

	url := c.shopBaseURL() + "/.well-known/customer-account-api"
	body, status, err := c.send(ctx, http.MethodGet, url, nil, "", nil)
	if err != nil {
		return "", err
	}
	if status/100 != 2 {
		return "", fmt.Errorf("failed to get Customer Account API config: %d", status)
	}
	var doc struct {
		GraphQLAPI string `json:"graphql_api"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", err
	}
	if doc.GraphQLAPI == "" {
		return "", errors.New("no graphql_api in customer-account-api config")
	}
	c.mu.Lock()
	c.customerEndpoint = doc.GraphQLAPI
	c.mu.Unlock()
	return doc.GraphQLAPI, nil
}

func (c *Client) fetchStorefrontToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.storefrontToken != "" {
		tok := c.storefrontToken
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	body, status, err := c.send(ctx, http.MethodGet, c.cfg.BaseURL+"/api/storefront-token", nil, "", nil)
	if err != nil {
		return "", err
	}
	if status/100 != 2 {
		return "", errors.New(errorMessage(body, status))
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("no token in storefront-token response")
	}
	c.mu.Lock()
	c.storefrontToken = resp.Token
	c.mu.Unlock()
	return resp.Token, nil
}

func marshalGraphQL(query string, variables map[string]any) ([]byte, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	return json.Marshal(map[string]any{"query": query, "variables": variables})
}

func decodeGraphQL(body []byte, out any) error {
	var env graphQLEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return err
	}
	if err := env.err(); err != nil {
		return err
	}
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
