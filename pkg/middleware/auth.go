// pkg/middleware/auth.go
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"accountgw/pkg/metrics"
)

type authCtxKey string

const (
	ctxTokenKey    authCtxKey = "access_token"
	ctxCustomerKey authCtxKey = "customer"
)

// Customer is the identity resolved from a bearer token.
type Customer struct {
	ID    string
	Email string
}

// IdentityResolver exchanges an access token for a concrete customer
// identity by querying the upstream platform.
type IdentityResolver func(ctx context.Context, accessToken string) (Customer, error)

// RequireToken rejects requests without a well-formed bearer header and
// attaches the raw token to the context. Cheap path: no upstream call.
func RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
	})
}

// RequireCustomer is the strict path: bearer token present and resolved to a
// platform identity. Terminal states only — any resolution failure is a 401,
// no retries at this layer.
func RequireCustomer(resolve IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
				return
			}
			cust, err := resolve(r.Context(), token)
			if err != nil {
				metrics.IdentityResolutions.WithLabelValues("rejected").Inc()
				msg := err.Error()
				if msg == "" {
					msg = "Authorization failed"
				}
				writeAuthError(w, http.StatusUnauthorized, msg)
				return
			}
			metrics.IdentityResolutions.WithLabelValues("resolved").Inc()
			ctx := WithToken(r.Context(), token)
			ctx = WithCustomer(ctx, cust)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[len("Bearer "):])
	if token == "" {
		return "", false
	}
	return token, true
}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxTokenKey, token)
}

// TokenFrom returns the bearer token attached by RequireToken/RequireCustomer.
func TokenFrom(ctx context.Context) string {
	if v := ctx.Value(ctxTokenKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func WithCustomer(ctx context.Context, c Customer) context.Context {
	return context.WithValue(ctx, ctxCustomerKey, c)
}

// CustomerFrom returns the resolved identity, if any.
func CustomerFrom(ctx context.Context) (Customer, bool) {
	if v := ctx.Value(ctxCustomerKey); v != nil {
		if c, ok := v.(Customer); ok {
			return c, true
		}
	}
	return Customer{}, false
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
