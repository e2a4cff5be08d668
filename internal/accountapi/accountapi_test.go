package accountapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"accountgw/internal/shopify"
	"accountgw/pkg/config"
	"accountgw/pkg/logger"
)

const goodToken = "good-customer-token"

// harness wires the full HTTP handler against a fake shop. The admin
// GraphQL endpoint dispatches on the operation in the query text; tests
// override per-operation responders and inspect mutation counters.
type harness struct {
	app     *App
	handler http.Handler
	shop    *httptest.Server

	mutationCalls atomic.Int64

	// respond maps an operation marker (substring of the query) to a
	// canned admin GraphQL response body.
	respond map[string]any
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{respond: map[string]any{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token_endpoint": h.shop.URL + "/oauth/token",
		})
	})
	mux.HandleFunc("/.well-known/customer-account-api", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"graphql_api": h.shop.URL + "/customer/graphql",
		})
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.PostForm.Get("grant_type") {
		case "client_credentials":
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "admin-token", "expires_in": 7200})
		case "authorization_code":
			if r.PostForm.Get("code") == "stale" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "T", "refresh_token": "R", "expires_in": 1800,
			})
		case "refresh_token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "T2", "refresh_token": "R2", "expires_in": 1800,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/customer/graphql", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data":   map[string]any{"customer": nil},
				"errors": []map[string]string{{"message": "Unauthorized"}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"customer": map[string]any{
					"id":           "gid://shopify/Customer/111",
					"emailAddress": map[string]string{"emailAddress": "me@shop.example"},
				},
			},
		})
	})
	mux.HandleFunc("/admin/api/2024-01/graphql.json", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		query := string(body)
		if strings.Contains(query, "customerUpdate") ||
			strings.Contains(query, "metafieldsSet") ||
			strings.Contains(query, "metafieldDelete") {
			h.mutationCalls.Add(1)
		}
		for marker, resp := range h.respond {
			if strings.Contains(query, marker) {
				_ = json.NewEncoder(w).Encode(resp)
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	})
	mux.HandleFunc("/admin/api/2024-01/storefront_access_tokens.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"storefront_access_tokens": []map[string]string{{"access_token": "sf-token"}},
		})
	})
	h.shop = httptest.NewServer(mux)
	t.Cleanup(h.shop.Close)

	cfg := config.Config{
		Env:          "test",
		ShopDomain:   "test-shop.example",
		APIVersion:   "2024-01",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		DiscoveryTTL: time.Hour,
	}
	shopClient := shopify.New(shopify.Config{
		ShopDomain:   cfg.ShopDomain,
		APIVersion:   cfg.APIVersion,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		DiscoveryTTL: cfg.DiscoveryTTL,
		BaseURL:      h.shop.URL,
	}, logger.Nop(), shopify.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))

	h.app = New(logger.Nop(), cfg, shopClient)
	h.handler = h.app.Handler()
	return h
}

func (h *harness) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
