// pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokenExchanges counts broker token-endpoint calls by grant and outcome.
	TokenExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accountgw_token_exchanges_total",
		Help: "OAuth token endpoint calls by grant type and outcome.",
	}, []string{"grant", "outcome"})

	// MachineTokenCache counts machine-token cache lookups by token kind and result.
	MachineTokenCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accountgw_machine_token_cache_total",
		Help: "Machine token cache lookups by kind (admin, storefront) and result (hit, miss).",
	}, []string{"kind", "result"})

	// UpstreamRequests counts GraphQL calls by API surface and outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accountgw_upstream_requests_total",
		Help: "Upstream Shopify GraphQL requests by api (admin, customer, storefront) and outcome.",
	}, []string{"api", "outcome"})

	// IdentityResolutions counts auth-gateway identity lookups by outcome.
	IdentityResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accountgw_identity_resolutions_total",
		Help: "Bearer-token identity resolutions by outcome.",
	}, []string{"outcome"})
)
