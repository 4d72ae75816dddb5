package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Storage. DATABASE_URL selects Postgres; otherwise SQLite at
	// SQLitePath is used.
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Tenancy
	BaseDomain string
	ENSSuffix  string

	// Signing
	SessionPackageFile string
	SessionSealKey     string
	ChainID            int64

	// External collaborators
	RPCURLs               map[int64]string // chain id -> RPC endpoint
	IdentityRegistry      string
	ValidationRegistryURL string

	// Caching
	TrendsTTL time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		Env:                   getEnv("ENV", "development"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		SQLitePath:            getEnv("SQLITE_PATH", "./data/trust.db"),
		RedisURL:              os.Getenv("REDIS_URL"),
		BaseDomain:            os.Getenv("BASE_DOMAIN"),
		ENSSuffix:             getEnv("ENS_SUFFIX", ".agentic-trust.eth"),
		SessionPackageFile:    os.Getenv("SESSION_PACKAGE_FILE"),
		SessionSealKey:        os.Getenv("SESSION_SEAL_KEY"),
		IdentityRegistry:      os.Getenv("IDENTITY_REGISTRY"),
		ValidationRegistryURL: os.Getenv("VALIDATION_REGISTRY_URL"),
		RPCURLs:               make(map[int64]string),
	}

	if chainID, err := strconv.ParseInt(getEnv("CHAIN_ID", "1"), 10, 64); err == nil {
		cfg.ChainID = chainID
	} else {
		cfg.ChainID = 1
	}

	ttl := 5 * time.Minute
	if raw := os.Getenv("TRENDS_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			ttl = parsed
		}
	}
	cfg.TrendsTTL = ttl

	// RPC endpoints are declared per chain: RPC_URL_1, RPC_URL_11155111, ...
	for _, entry := range os.Environ() {
		key, value, _ := strings.Cut(entry, "=")
		suffix, ok := strings.CutPrefix(key, "RPC_URL_")
		if !ok || value == "" {
			continue
		}
		chainID, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			continue
		}
		cfg.RPCURLs[chainID] = value
	}

	// In production, require an explicit database and seal key
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.SessionSealKey == "" {
			panic("SESSION_SEAL_KEY is required in production")
		}
	}

	return cfg
}

// RPCURL returns the endpoint for the configured chain, if any.
func (c *Config) RPCURL() string {
	return c.RPCURLs[c.ChainID]
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
