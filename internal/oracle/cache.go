package oracle

import (
	"context"
	"log"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

// CachedOracle fills candle reads from the store, falling through to the
// upstream oracle on a miss and writing the fetched bars back. Spot prices
// pass straight through.
type CachedOracle struct {
	upstream PriceOracle
	store    storage.CandleStore
	logger   *log.Logger
}

// NewCached wraps upstream with a store-backed candle cache.
func NewCached(upstream PriceOracle, store storage.CandleStore, logger *log.Logger) *CachedOracle {
	if logger == nil {
		logger = log.Default()
	}
	return &CachedOracle{upstream: upstream, store: store, logger: logger}
}

var _ PriceOracle = (*CachedOracle)(nil)

// Candles implements PriceOracle. A non-empty cached range is served as-is;
// only a fully cold range goes upstream.
func (c *CachedOracle) Candles(ctx context.Context, mint string, start, end int64, resolution string) ([]*domain.Candle, error) {
	cached, err := c.store.GetRange(ctx, mint, resolution, start, end)
	if err != nil {
		c.logger.Printf("oracle cache: read failed for %s: %v", mint, err)
	} else if len(cached) > 0 {
		return cached, nil
	}

	fetched, err := c.upstream.Candles(ctx, mint, start, end, resolution)
	if err != nil {
		return nil, err
	}
	if len(fetched) > 0 {
		if err := c.store.UpsertBulk(ctx, fetched); err != nil {
			c.logger.Printf("oracle cache: write failed for %s: %v", mint, err)
		}
	}
	return fetched, nil
}

// CurrentPriceUSD implements PriceOracle.
func (c *CachedOracle) CurrentPriceUSD(ctx context.Context, mint string) (float64, error) {
	return c.upstream.CurrentPriceUSD(ctx, mint)
}
