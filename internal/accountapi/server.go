package accountapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"accountgw/pkg/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.Tracing())
	r.Use(middleware.CORS(splitOrigins(a.cfg.CORSOrigins)))

	r.Get("/health", a.getHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/api/storefront-token", a.getStorefrontToken)

	r.Route("/api/auth", func(ar chi.Router) {
		ar.Get("/ping", a.getPing)
		ar.Get("/callback-debug", a.getCallbackDebug)
		ar.Post("/token", a.postToken)
		ar.Post("/refresh", a.postRefresh)
		ar.Post("/verify", a.postVerify)
	})

	r.Route("/api/admin", func(ar chi.Router) {
		ar.Get("/branding", a.getBranding)
		// Mutating customer-data routes require a resolved identity; the
		// handlers then re-check resource ownership against it.
		ar.Group(func(mr chi.Router) {
			mr.Use(middleware.RequireCustomer(a.resolveCustomer))
			mr.Post("/customer/deactivate", a.postCustomerDeactivate)
			mr.Post("/metafields/set", a.postMetafieldsSet)
			mr.Post("/metafields/delete", a.postMetafieldsDelete)
		})
	})

	return r
}

func splitOrigins(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
