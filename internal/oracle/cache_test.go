package oracle

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage/memory"
)

// countingOracle wraps Static and counts upstream calls.
type countingOracle struct {
	Static
	candleCalls int
	spotCalls   int
}

func (c *countingOracle) Candles(ctx context.Context, mint string, start, end int64, resolution string) ([]*domain.Candle, error) {
	c.candleCalls++
	return c.Static.Candles(ctx, mint, start, end, resolution)
}

func (c *countingOracle) CurrentPriceUSD(ctx context.Context, mint string) (float64, error) {
	c.spotCalls++
	return c.Static.CurrentPriceUSD(ctx, mint)
}

func TestCachedOracle_ColdFetchPersists(t *testing.T) {
	upstream := &countingOracle{Static: Static{
		Bars: map[string][]*domain.Candle{
			"m1": {
				{Mint: "m1", Resolution: domain.Resolution1h, T: 3600, Close: 2, High: 3},
				{Mint: "m1", Resolution: domain.Resolution1h, T: 7200, Close: 4, High: 5},
			},
		},
	}}
	store := memory.NewCandleStore()
	cached := NewCached(upstream, store, log.New(io.Discard, "", 0))
	ctx := context.Background()

	got, err := cached.Candles(ctx, "m1", 0, 10000, domain.Resolution1h)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, upstream.candleCalls)

	stored, err := store.GetRange(ctx, "m1", domain.Resolution1h, 0, 10000)
	require.NoError(t, err)
	assert.Len(t, stored, 2, "fetched bars written back to the store")
}

func TestCachedOracle_WarmReadSkipsUpstream(t *testing.T) {
	upstream := &countingOracle{Static: Static{
		Bars: map[string][]*domain.Candle{
			"m1": {
				{Mint: "m1", Resolution: domain.Resolution1h, T: 3600, Close: 2},
			},
		},
	}}
	store := memory.NewCandleStore()
	cached := NewCached(upstream, store, log.New(io.Discard, "", 0))
	ctx := context.Background()

	_, err := cached.Candles(ctx, "m1", 0, 10000, domain.Resolution1h)
	require.NoError(t, err)

	got, err := cached.Candles(ctx, "m1", 0, 10000, domain.Resolution1h)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, upstream.candleCalls, "warm range must not go upstream")
}

func TestCachedOracle_EmptyUpstreamNotCached(t *testing.T) {
	upstream := &countingOracle{}
	store := memory.NewCandleStore()
	cached := NewCached(upstream, store, log.New(io.Discard, "", 0))
	ctx := context.Background()

	got, err := cached.Candles(ctx, "m1", 0, 10000, domain.Resolution1h)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = cached.Candles(ctx, "m1", 0, 10000, domain.Resolution1h)
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.candleCalls, "empty ranges stay cold")
}

func TestCachedOracle_UpstreamErrorPropagates(t *testing.T) {
	upstream := &failingOracle{err: errors.New("upstream down")}
	store := memory.NewCandleStore()
	cached := NewCached(upstream, store, log.New(io.Discard, "", 0))

	_, err := cached.Candles(context.Background(), "m1", 0, 10000, domain.Resolution1h)
	assert.Error(t, err)
}

func TestCachedOracle_SpotPassesThrough(t *testing.T) {
	upstream := &countingOracle{Static: Static{
		Prices: map[string]float64{"m1": 1.5},
	}}
	cached := NewCached(upstream, memory.NewCandleStore(), log.New(io.Discard, "", 0))
	ctx := context.Background()

	price, err := cached.CurrentPriceUSD(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, price)

	_, err = cached.CurrentPriceUSD(ctx, "missing")
	assert.ErrorIs(t, err, ErrPriceUnknown)
	assert.Equal(t, 2, upstream.spotCalls)
}

type failingOracle struct {
	err error
}

func (f *failingOracle) Candles(context.Context, string, int64, int64, string) ([]*domain.Candle, error) {
	return nil, f.err
}

func (f *failingOracle) CurrentPriceUSD(context.Context, string) (float64, error) {
	return 0, f.err
}
