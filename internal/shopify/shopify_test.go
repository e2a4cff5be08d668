package shopify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fakeShop stands in for the shop's well-known documents, OAuth token
// endpoint and GraphQL surfaces. Every test gets its own instance so call
// counters are isolated.
type fakeShop struct {
	srv *httptest.Server

	discoveryCalls atomic.Int64
	tokenCalls     atomic.Int64
	adminGQLCalls  atomic.Int64
	listCalls      atomic.Int64

	// tokenHandler overrides the token endpoint response when set.
	tokenHandler func(w http.ResponseWriter, r *http.Request)
	// customerGQL overrides the customer GraphQL response when set.
	customerGQL func(w http.ResponseWriter, r *http.Request)
	// adminGQL overrides admin GraphQL when set.
	adminGQL func(w http.ResponseWriter, r *http.Request)
	// listTokens overrides the storefront token listing when set.
	listTokens func(w http.ResponseWriter, r *http.Request)
}

func newFakeShop(t *testing.T) *fakeShop {
	t.Helper()
	f := &fakeShop{}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		f.discoveryCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 f.srv.URL,
			"authorization_endpoint": f.srv.URL + "/oauth/authorize",
			"token_endpoint":         f.srv.URL + "/oauth/token",
		})
	})
	mux.HandleFunc("/.well-known/customer-account-api", func(w http.ResponseWriter, r *http.Request) {
		f.discoveryCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"graphql_api": f.srv.URL + "/customer/graphql",
		})
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if f.tokenHandler != nil {
			f.tokenHandler(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "upstream-access",
			"refresh_token": "upstream-refresh",
			"expires_in":    7200,
		})
	})
	mux.HandleFunc("/customer/graphql", func(w http.ResponseWriter, r *http.Request) {
		if f.customerGQL != nil {
			f.customerGQL(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	})
	mux.HandleFunc("/admin/api/2024-01/graphql.json", func(w http.ResponseWriter, r *http.Request) {
		f.adminGQLCalls.Add(1)
		if f.adminGQL != nil {
			f.adminGQL(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	})
	mux.HandleFunc("/admin/api/2024-01/storefront_access_tokens.json", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls.Add(1)
		if f.listTokens != nil {
			f.listTokens(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"storefront_access_tokens": []any{}})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeShop) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	cfg := Config{
		ShopDomain:   "test-shop.example",
		APIVersion:   "2024-01",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		BaseURL:      f.srv.URL,
	}
	opts = append([]Option{WithHTTPClient(&http.Client{Timeout: 5 * time.Second})}, opts...)
	return New(cfg, nil, opts...)
}
