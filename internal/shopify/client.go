// Package shopify is the upstream platform layer: discovery-document and
// machine-token caching, the customer OAuth token broker, and thin GraphQL
// request wrappers for the Admin, Customer Account and Storefront APIs.
//
// A single Client is shared process-wide. Its three caches (discovery
// documents, admin token, storefront token) are the only shared mutable
// state in the server; concurrent refreshes are benign (last write wins,
// both values valid) so a plain mutex per cache is all that is needed.
package shopify

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"accountgw/pkg/config"
	"accountgw/pkg/logger"
	"accountgw/pkg/middleware"
)

// Config carries the shop settings the client needs. Derived from the
// service config; split out so tests can build one directly.
type Config struct {
	ShopDomain   string
	APIVersion   string
	ClientID     string
	ClientSecret string

	// AdminToken is the legacy static Admin API token. When set it is used
	// as-is and no client-credentials grant is performed.
	AdminToken string

	DiscoveryTTL time.Duration

	// BaseURL overrides https://<ShopDomain> (tests).
	BaseURL string
}

// FromService maps the service configuration onto the client config.
func FromService(cfg config.Config) Config {
	return Config{
		ShopDomain:   cfg.ShopDomain,
		APIVersion:   cfg.APIVersion,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AdminToken:   cfg.AdminToken,
		DiscoveryTTL: cfg.DiscoveryTTL,
	}
}

type Client struct {
	cfg   Config
	httpc *http.Client
	log   logger.Sugared
	now   func() time.Time

	discMu    sync.Mutex
	discovery map[DiscoveryKind]cachedDiscovery
	discSF    singleflight.Group

	tokMu           sync.Mutex
	adminToken      machineToken
	storefrontToken string
}

type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithClock injects the time source used for cache expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(cfg Config, log *zap.SugaredLogger, opts ...Option) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-01"
	}
	if cfg.DiscoveryTTL <= 0 {
		cfg.DiscoveryTTL = 24 * time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		cfg: cfg,
		httpc: &http.Client{
			Transport: middleware.Transport(nil),
			Timeout:   30 * time.Second,
		},
		log:       log,
		now:       time.Now,
		discovery: map[DiscoveryKind]cachedDiscovery{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) baseURL() string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	return fmt.Sprintf("https://%s", c.cfg.ShopDomain)
}
