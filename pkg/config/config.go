// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string // web-service

	// Public URLs (PublicURL wins when the service sits behind a proxy)
	AppURL    string
	PublicURL string

	// Shopify app credentials and OAuth parameters
	APIKey      string
	APISecret   string
	Scopes      string
	RedirectURI string
	APIVersion  string

	// Secret the platform signs webhook deliveries with. Resolved once at
	// load: WEBHOOK_SECRET when set, else the API secret. Never guessed
	// per-request.
	WebhookSecret string

	// Shop domain validation (tests override the suffix)
	ShopDomainSuffix string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string

	// Access-token encryption at rest (base64, 32 bytes; empty = plaintext)
	TokenEncKey string

	// OAuth state and sync tuning
	StateTTL    time.Duration
	LeaseTTL    time.Duration
	PageLimit   int
	MaxAttempts int
	TaskTimeout time.Duration

	// Worker
	WorkerConcurrency int

	// Webhook topic registry override (YAML); empty = built-in defaults
	TopicsFile string

	// Embedded-app session token verification on /api
	SessionTokenAuth bool
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:               env("APP_ENV", "dev"),
		HTTPAddr:          env("HTTP_ADDR", ":8080"),
		AppURL:            env("APP_URL", "http://localhost:8080"),
		APIKey:            env("SHOPIFY_API_KEY", ""),
		APISecret:         env("SHOPIFY_API_SECRET", ""),
		Scopes:            env("SHOPIFY_SCOPES", "read_products,write_products,read_orders,write_orders,read_inventory,write_inventory"),
		APIVersion:        env("SHOPIFY_API_VERSION", "2023-10"),
		ShopDomainSuffix:  env("SHOP_DOMAIN_SUFFIX", ".myshopify.com"),
		RedisURL:          env("REDIS_URL", ""),
		DatabaseURL:       env("DATABASE_URL", ""),
		TokenEncKey:       env("TOKEN_ENC_KEY", ""),
		StateTTL:          envDur("OAUTH_STATE_TTL_SEC", 600) * time.Second,
		LeaseTTL:          envDur("SYNC_LEASE_TTL_SEC", 600) * time.Second,
		PageLimit:         envInt("SYNC_PAGE_LIMIT", 250),
		MaxAttempts:       envInt("SYNC_MAX_ATTEMPTS", 5),
		TaskTimeout:       envDur("SYNC_TASK_TIMEOUT_SEC", 1800) * time.Second,
		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 10),
		TopicsFile:        env("WEBHOOK_TOPICS_FILE", ""),
		SessionTokenAuth:  envBool("SESSION_TOKEN_AUTH", false),
	}
	cfg.PublicURL = env("PUBLIC_URL", cfg.AppURL)
	cfg.RedirectURI = env("SHOPIFY_REDIRECT_URI", cfg.PublicURL+"/auth/callback")
	cfg.WebhookSecret = env("WEBHOOK_SECRET", cfg.APISecret)
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory stores for dev")
	}
	if cfg.WebhookSecret == "" {
		log.Println("[WARN] no webhook secret configured — inbound webhooks will be rejected")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
