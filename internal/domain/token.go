package domain

// Token metadata sources, in resolution priority order.
const (
	MetaSourceLocal       = "local"
	MetaSourceJupiter     = "jupiter"
	MetaSourceDexScreener = "dexscreener"
	MetaSourceHelius      = "helius"
	MetaSourceDerived     = "derived"
)

// TokenMeta is resolved token metadata, cached by mint.
// Corresponds to token_meta table in PostgreSQL.
type TokenMeta struct {
	Mint      string  // PK
	Symbol    string
	Name      *string // nullable
	Decimals  int
	Source    string // MetaSourceLocal | MetaSourceJupiter | ... | MetaSourceDerived
	FetchedAt int64  // when metadata was fetched (ms)
	CreatedAt int64  // record creation timestamp (ms)
}

// Candle resolutions accepted by the price oracle.
const (
	Resolution1m = "1m"
	Resolution5m = "5m"
	Resolution1h = "1h"
	Resolution1d = "1d"
)

// Candle is one OHLC bar for a mint at a given resolution.
// Corresponds to candles table in ClickHouse, keyed by (mint, resolution, t).
type Candle struct {
	Mint       string
	Resolution string
	T          int64 // bar open time, Unix seconds
	Open       float64
	High       float64
	Low        float64
	Close      float64
}
