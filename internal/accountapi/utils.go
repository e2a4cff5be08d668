package accountapi

import (
	"context"
	"encoding/json"
	"net/http"

	"accountgw/pkg/apierr"
	"accountgw/pkg/middleware"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, map[string]string{"error": msg}, status)
}

// writeFailure maps an error from the taxonomy to its boundary status.
func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), apierr.Status(err))
}

// resolveCustomer adapts the broker's Verify for the auth-gateway middleware.
func (a *App) resolveCustomer(ctx context.Context, token string) (middleware.Customer, error) {
	id, err := a.shop.Verify(ctx, token)
	if err != nil {
		return middleware.Customer{}, err
	}
	return middleware.Customer{ID: id.CustomerID, Email: id.Email}, nil
}
