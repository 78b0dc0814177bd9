// Package config loads indexer configuration from the environment,
// with optional .env file support.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values.
const (
	DefaultTimeoutMs = 20000
	DefaultPageLimit = 1000
	DefaultMaxPages  = 1000

	PriceProviderBirdeye = "birdeye"
	PriceProviderGecko   = "gecko"
)

// Config holds all recognized configuration options.
type Config struct {
	// HeliusAPIKey authenticates against the enhanced-transactions API. Required.
	HeliusAPIKey string

	// TimeoutMs bounds every upstream HTTP call.
	TimeoutMs int

	// PageLimit is the requested items per page (upper bound).
	PageLimit int

	// MaxPages is the backfill safety cap.
	MaxPages int

	// PriceProvider selects the candle/spot price source.
	PriceProvider string

	// BirdeyeAPIKey authenticates against Birdeye when it is the price provider.
	BirdeyeAPIKey string

	// DatabaseURL is the optional Postgres DSN. Empty selects in-memory storage.
	DatabaseURL string

	// ClickhouseDSN is the optional candle cache DSN.
	ClickhouseDSN string

	// SolanaWSEndpoint is the optional websocket endpoint for watch mode.
	SolanaWSEndpoint string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() (*Config, error) {
	// Missing .env is fine; explicit env vars win either way.
	_ = godotenv.Load()

	cfg := &Config{
		HeliusAPIKey:     os.Getenv("HELIUS_API_KEY"),
		TimeoutMs:        DefaultTimeoutMs,
		PageLimit:        DefaultPageLimit,
		MaxPages:         DefaultMaxPages,
		PriceProvider:    PriceProviderBirdeye,
		BirdeyeAPIKey:    os.Getenv("BIRDEYE_API_KEY"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		ClickhouseDSN:    os.Getenv("CLICKHOUSE_DSN"),
		SolanaWSEndpoint: os.Getenv("SOLANA_WS_ENDPOINT"),
	}

	if cfg.HeliusAPIKey == "" {
		return nil, fmt.Errorf("HELIUS_API_KEY is required (hint: check your API key configuration)")
	}

	var err error
	if cfg.TimeoutMs, err = intEnv("INDEXER_TIMEOUT_MS", DefaultTimeoutMs); err != nil {
		return nil, err
	}
	if cfg.PageLimit, err = intEnv("INDEXER_PAGE_LIMIT", DefaultPageLimit); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = intEnv("MAX_PAGES", DefaultMaxPages); err != nil {
		return nil, err
	}

	if v := os.Getenv("PRICE_PROVIDER"); v != "" {
		switch v {
		case PriceProviderBirdeye, PriceProviderGecko:
			cfg.PriceProvider = v
		default:
			return nil, fmt.Errorf("PRICE_PROVIDER must be %q or %q, got %q",
				PriceProviderBirdeye, PriceProviderGecko, v)
		}
	}

	return cfg, nil
}

// Timeout returns the per-call upstream timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, v)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return n, nil
}
