// Package oracle prices tokens in USD: historical OHLC candles and spot
// prices, backed by pluggable HTTP providers and a store cache.
package oracle

import (
	"context"
	"errors"

	"solana-wallet-indexer/internal/domain"
)

// ErrPriceUnknown means the provider has no price for the mint. Callers treat
// it as an absent value, never as a hard failure.
var ErrPriceUnknown = errors.New("price unknown")

// PriceOracle answers price questions for a mint.
type PriceOracle interface {
	// Candles returns OHLC bars with t in [start, end] (Unix seconds),
	// ordered by t ascending. An empty slice is a valid answer.
	Candles(ctx context.Context, mint string, start, end int64, resolution string) ([]*domain.Candle, error)

	// CurrentPriceUSD returns the spot price. Returns ErrPriceUnknown when
	// the provider does not track the mint.
	CurrentPriceUSD(ctx context.Context, mint string) (float64, error)
}

// ValidResolution reports whether res is one of the supported bar sizes.
func ValidResolution(res string) bool {
	switch res {
	case domain.Resolution1m, domain.Resolution5m, domain.Resolution1h, domain.Resolution1d:
		return true
	}
	return false
}
