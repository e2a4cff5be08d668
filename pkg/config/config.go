// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Shopify shop + API settings
	ShopDomain string
	APIVersion string

	// Customer Account OAuth client (confidential; the secret never leaves the server)
	ClientID     string
	ClientSecret string

	// Legacy static Admin API token; when set it is used instead of the
	// client-credentials grant.
	AdminToken string

	DiscoveryTTL time.Duration

	CORSOrigins string
}

// fileSettings is the optional YAML overlay (ACCOUNT_CONFIG_FILE).
// Env vars win over file values.
type fileSettings struct {
	ShopDomain   string `yaml:"shop_domain"`
	APIVersion   string `yaml:"api_version"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AdminToken   string `yaml:"admin_token"`
}

func Load() Config {
	_ = godotenv.Load()

	var fs fileSettings
	if path := os.Getenv("ACCOUNT_CONFIG_FILE"); path != "" {
		if b, err := os.ReadFile(path); err != nil {
			log.Printf("[WARN] config file %s unreadable: %v", path, err)
		} else if err := yaml.Unmarshal(b, &fs); err != nil {
			log.Printf("[WARN] config file %s invalid: %v", path, err)
		}
	}

	cfg := Config{
		Env:          env("ACCOUNT_ENV", "dev"),
		HTTPAddr:     env("ACCOUNT_HTTP_ADDR", ":3601"),
		ShopDomain:   env("SHOPIFY_SHOP_DOMAIN", fs.ShopDomain),
		APIVersion:   env("SHOPIFY_API_VERSION", or(fs.APIVersion, "2024-01")),
		ClientID:     env("SHOPIFY_CLIENT_ID", fs.ClientID),
		ClientSecret: env("SHOPIFY_CLIENT_SECRET", fs.ClientSecret),
		AdminToken:   env("SHOPIFY_ADMIN_API_TOKEN", fs.AdminToken),
		DiscoveryTTL: envDur("DISCOVERY_TTL_HOURS", 24) * time.Hour,
		CORSOrigins:  env("ACCOUNT_CORS_ORIGINS", ""),
	}
	if cfg.ShopDomain == "" {
		log.Println("[WARN] SHOPIFY_SHOP_DOMAIN not set — upstream calls will fail until configured")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}
