package oracle

import (
	"context"
	"fmt"

	"solana-wallet-indexer/internal/domain"
)

// Static is a fixed in-memory oracle for tests and offline analysis.
type Static struct {
	// Prices maps mint to spot USD price.
	Prices map[string]float64

	// Bars maps mint to its candles, any resolution, ordered by T.
	Bars map[string][]*domain.Candle
}

var _ PriceOracle = (*Static)(nil)

// Candles implements PriceOracle.
func (s *Static) Candles(_ context.Context, mint string, start, end int64, resolution string) ([]*domain.Candle, error) {
	var out []*domain.Candle
	for _, c := range s.Bars[mint] {
		if c.Resolution == resolution && c.T >= start && c.T <= end {
			out = append(out, c)
		}
	}
	return out, nil
}

// CurrentPriceUSD implements PriceOracle.
func (s *Static) CurrentPriceUSD(_ context.Context, mint string) (float64, error) {
	price, ok := s.Prices[mint]
	if !ok {
		return 0, fmt.Errorf("static price for %s: %w", mint, ErrPriceUnknown)
	}
	return price, nil
}
