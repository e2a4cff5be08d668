package accountapi

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var validVerifier = strings.Repeat("v", 43)

func TestPostTokenSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/token", "", map[string]string{
		"code":         "fresh-code",
		"codeVerifier": validVerifier,
		"redirect_uri": "https://app.example/callback",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "T", body["access_token"])
	require.Equal(t, "R", body["refresh_token"])
}

func TestPostTokenAcceptsSnakeCaseVerifier(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/token", "", map[string]string{
		"code":          "fresh-code",
		"code_verifier": validVerifier,
		"redirectUri":   "https://app.example/callback",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPostTokenMissingFields(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/token", "", map[string]string{"code": "only-code"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "code, codeVerifier and redirect_uri required", decodeBody(t, rec)["error"])
}

func TestPostTokenUpstreamRejectionIs400(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/token", "", map[string]string{
		"code":         "stale",
		"codeVerifier": validVerifier,
		"redirect_uri": "https://app.example/callback",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostRefreshSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": "R"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "T2", decodeBody(t, rec)["access_token"])
}

func TestPostRefreshMissingToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "refreshToken required", decodeBody(t, rec)["error"])
}

func TestPostVerifySuccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"accessToken": goodToken})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, "gid://shopify/Customer/111", body["customerId"])
	require.Equal(t, "me@shop.example", body["email"])
}

func TestPostVerifyBearerHeaderFallback(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/verify", goodToken, map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPostVerifyRejectsBadToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"accessToken": "garbage"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostVerifyMissingToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "accessToken required", decodeBody(t, rec)["error"])
}

func TestGetPing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/auth/ping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["pong"])
}

func TestGetHealthShape(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "ok", body["status"])
	shop, ok := body["shopify"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ok", shop["admin_api"])
	require.Equal(t, "ok", shop["customer_api"])
}

func TestGetStorefrontToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/storefront-token", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "sf-token", decodeBody(t, rec)["token"])
}
