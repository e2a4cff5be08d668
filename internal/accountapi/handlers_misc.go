package accountapi

import (
	"net/http"
	"time"

	"accountgw/internal/shopify"
)

const shopPingQuery = `{ shop { name } }`

// getHealth probes both upstream surfaces but always answers 200 — the
// handler reports degradation, it does not gate readiness.
func (a *App) getHealth(w http.ResponseWriter, r *http.Request) {
	adminAPI := "error"
	customerAPI := "error"

	if _, err := a.shop.AdminGraphQL(r.Context(), shopPingQuery, nil); err == nil {
		adminAPI = "ok"
	}
	_, errOpenID := a.shop.Discovery(r.Context(), shopify.DiscoveryOpenID)
	_, errCustomer := a.shop.Discovery(r.Context(), shopify.DiscoveryCustomerAPI)
	if errOpenID == nil && errCustomer == nil {
		customerAPI = "ok"
	}

	writeJSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"shopify": map[string]string{
			"admin_api":    adminAPI,
			"customer_api": customerAPI,
		},
		"uptime": int(time.Since(a.startTime).Seconds()),
	}, http.StatusOK)
}

func (a *App) getStorefrontToken(w http.ResponseWriter, r *http.Request) {
	token, err := a.shop.StorefrontToken(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, map[string]string{"token": token}, http.StatusOK)
}
