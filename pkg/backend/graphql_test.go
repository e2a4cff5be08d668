package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// shopStub serves both roles the client talks to: the broker (refresh,
// storefront-token handout) and the shop (customer-account discovery plus
// the two GraphQL surfaces).
type shopStub struct {
	t *testing.T

	discoveryCalls atomic.Int64
	sfTokenCalls   atomic.Int64
	customerCalls  atomic.Int64
	refreshCalls   atomic.Int64

	// customerGQL decides the response for the nth customer GraphQL call
	// (1-based).
	customerGQL func(n int64, w http.ResponseWriter, r *http.Request)
	// storefrontGQL overrides the storefront GraphQL response when set.
	storefrontGQL func(w http.ResponseWriter, r *http.Request)
}

func (s *shopStub) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/customer-account-api", func(w http.ResponseWriter, r *http.Request) {
		s.discoveryCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"graphql_api": "http://" + r.Host + "/customer/graphql",
		})
	})
	mux.HandleFunc("/customer/graphql", func(w http.ResponseWriter, r *http.Request) {
		s.customerGQL(s.customerCalls.Add(1), w, r)
	})
	mux.HandleFunc("/api/storefront-token", func(w http.ResponseWriter, r *http.Request) {
		s.sfTokenCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "sf-1"})
	})
	mux.HandleFunc("/api/2024-01/graphql.json", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(s.t, "sf-1", r.Header.Get("X-Shopify-Storefront-Access-Token"))
		if s.storefrontGQL != nil {
			s.storefrontGQL(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"shop": map[string]string{"name": "Test Shop"}},
		})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	})
	srv := httptest.NewServer(mux)
	s.t.Cleanup(srv.Close)
	return srv
}

func newGraphQLClient(t *testing.T, stub *shopStub) *Client {
	t.Helper()
	srv := stub.server()
	c, _ := newClientWithTokens(t, srv.URL, false)
	c.cfg.ShopBaseURL = srv.URL
	return c
}

func TestCustomerQueryCachesDiscoveredEndpoint(t *testing.T) {
	t.Parallel()
	stub := &shopStub{t: t}
	stub.customerGQL = func(n int64, w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer access-0", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"customer": map[string]string{"id": "gid://shopify/Customer/1"}},
		})
	}
	c := newGraphQLClient(t, stub)
	ctx := context.Background()

	var out struct {
		Customer struct {
			ID string `json:"id"`
		} `json:"customer"`
	}
	require.NoError(t, c.CustomerQuery(ctx, `query { customer { id } }`, nil, &out))
	require.Equal(t, "gid://shopify/Customer/1", out.Customer.ID)

	require.NoError(t, c.CustomerQuery(ctx, `query { customer { id } }`, nil, &out))
	require.EqualValues(t, 2, stub.customerCalls.Load())
	// Endpoint discovered once, reused for the second query.
	require.EqualValues(t, 1, stub.discoveryCalls.Load())
}

func TestCustomerQueryRefreshesOnceOn401(t *testing.T) {
	t.Parallel()
	stub := &shopStub{t: t}
	stub.customerGQL = func(n int64, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			require.Equal(t, "Bearer access-0", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}
	c := newGraphQLClient(t, stub)

	require.NoError(t, c.CustomerQuery(context.Background(), `query { customer { id } }`, nil, nil))
	require.EqualValues(t, 2, stub.customerCalls.Load())
	require.EqualValues(t, 1, stub.refreshCalls.Load())
}

func TestCustomerQuerySurfacesFirstGraphQLError(t *testing.T) {
	t.Parallel()
	stub := &shopStub{t: t}
	stub.customerGQL = func(n int64, w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": nil,
			"errors": []map[string]string{
				{"message": "Field 'bogus' doesn't exist"},
				{"message": "second error never surfaces"},
			},
		})
	}
	c := newGraphQLClient(t, stub)

	err := c.CustomerQuery(context.Background(), `query { bogus }`, nil, nil)
	require.EqualError(t, err, "Field 'bogus' doesn't exist")
}

func TestStorefrontQueryFetchesTokenOnce(t *testing.T) {
	t.Parallel()
	stub := &shopStub{t: t}
	c := newGraphQLClient(t, stub)
	ctx := context.Background()

	var out struct {
		Shop struct {
			Name string `json:"name"`
		} `json:"shop"`
	}
	require.NoError(t, c.StorefrontQuery(ctx, `query { shop { name } }`, nil, &out))
	require.Equal(t, "Test Shop", out.Shop.Name)

	require.NoError(t, c.StorefrontQuery(ctx, `query { shop { name } }`, nil, &out))
	// The broker handed out the token once; the second query reused it.
	require.EqualValues(t, 1, stub.sfTokenCalls.Load())
}

func TestStorefrontQuerySurfacesGraphQLError(t *testing.T) {
	t.Parallel()
	stub := &shopStub{t: t}
	stub.storefrontGQL = func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]string{{"message": "Throttled"}},
		})
	}
	c := newGraphQLClient(t, stub)

	err := c.StorefrontQuery(context.Background(), `query { shop { name } }`, nil, nil)
	require.EqualError(t, err, "Throttled")
}
