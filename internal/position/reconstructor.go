// Package position rebuilds per-token FIFO lots from the canonical event
// ledger and prices their realized, peak-potential and regret-gap outcomes.
package position

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/oracle"
)

// qtyEpsilon is the quantity below which a lot counts as fully consumed.
const qtyEpsilon = 1e-6

// hourlyWindowMax is the longest lot window priced with hourly bars; longer
// windows fall back to daily bars.
const hourlyWindowMax = 60 * 24 * time.Hour

// priceLookbacks orders the resolutions tried by priceAt, finest first, with
// how far back each one searches for the latest bar.
var priceLookbacks = []struct {
	resolution string
	lookback   int64 // seconds
}{
	{domain.Resolution1m, 2 * 3600},
	{domain.Resolution5m, 12 * 3600},
	{domain.Resolution1h, 7 * 86400},
	{domain.Resolution1d, 120 * 86400},
}

// Options configures Reconstructor. Zero values select defaults.
type Options struct {
	// Oracle prices buys, sells and lot windows. Required.
	Oracle oracle.PriceOracle

	// Now anchors open-lot windows; defaults to time.Now.
	Now func() time.Time

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Reconstructor computes position reports. Oracle trouble never aborts a
// run: unpriceable lots fall back to neutral metrics.
type Reconstructor struct {
	oracle oracle.PriceOracle
	now    func() time.Time
	logger *log.Logger
}

// New creates a Reconstructor.
func New(opts Options) *Reconstructor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Reconstructor{
		oracle: opts.Oracle,
		now:    opts.Now,
		logger: opts.Logger,
	}
}

// lot is the in-flight representation; money stays decimal until the report
// boundary.
type lot struct {
	id           string
	buyTime      int64
	buyQty       decimal.Decimal
	buyCostUSD   *decimal.Decimal
	remainingQty decimal.Decimal
	matched      []domain.MatchedSell
	realizedUSD  decimal.Decimal

	peakTimestamp    *int64
	peakPriceUSD     *float64
	peakPotentialUSD decimal.Decimal
	regretGapUSD     decimal.Decimal
}

type tokenState struct {
	mint     string
	symbol   string
	openLots []*lot
	allLots  []*lot
}

// Reconstruct replays the wallet's BUY and SELL events in ledger order and
// returns the priced report. currentPrices values mark open positions to
// market; missing mints count as zero.
func (r *Reconstructor) Reconstruct(ctx context.Context, wallet string, events []*domain.WalletEvent, currentPrices map[string]float64) (*domain.PositionReport, error) {
	ordered := make([]*domain.WalletEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].BlockTime != ordered[j].BlockTime {
			return ordered[i].BlockTime < ordered[j].BlockTime
		}
		if ordered[i].Signature != ordered[j].Signature {
			return ordered[i].Signature < ordered[j].Signature
		}
		return ordered[i].Index < ordered[j].Index
	})

	tokens := make(map[string]*tokenState)
	dropped := make(map[string]float64)
	prices := newPriceMemo(r.oracle, r.logger)

	for _, e := range ordered {
		switch e.Side {
		case domain.SideBuy:
			r.applyBuy(ctx, tokens, prices, e)
		case domain.SideSell:
			r.applySell(ctx, tokens, prices, dropped, e)
		}
	}

	report := &domain.PositionReport{
		Wallet:         wallet,
		EventCount:     len(events),
		DroppedSellQty: dropped,
	}

	mints := make([]string, 0, len(tokens))
	for mint := range tokens {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	realized := decimal.Zero
	peakPotential := decimal.Zero
	regret := decimal.Zero
	open := decimal.Zero

	for _, mint := range mints {
		state := tokens[mint]
		position := r.finishToken(ctx, state, currentPrices[mint])
		report.Tokens = append(report.Tokens, position)

		realized = realized.Add(decimal.NewFromFloat(position.RealizedUSD))
		peakPotential = peakPotential.Add(decimal.NewFromFloat(position.PeakPotentialUSD))
		regret = regret.Add(decimal.NewFromFloat(position.RegretGapUSD))
		open = open.Add(decimal.NewFromFloat(position.RemainingUSD))
	}

	report.RealizedUSD = realized.InexactFloat64()
	report.PeakPotentialUSD = peakPotential.InexactFloat64()
	report.RegretGapUSD = regret.InexactFloat64()
	report.OpenPositionsUSD = open.InexactFloat64()
	return report, nil
}

func (r *Reconstructor) applyBuy(ctx context.Context, tokens map[string]*tokenState, prices *priceMemo, e *domain.WalletEvent) {
	state := stateFor(tokens, e)
	qty := decimal.NewFromFloat(e.AmountUI).Abs()
	if qty.IsZero() {
		return
	}

	l := &lot{
		id:           e.Signature + ":" + formatTime(e.BlockTime),
		buyTime:      e.BlockTime,
		buyQty:       qty,
		remainingQty: qty,
	}
	if price, ok := prices.at(ctx, e.TokenMint, e.BlockTime); ok {
		cost := qty.Mul(price)
		l.buyCostUSD = &cost
	}
	state.openLots = append(state.openLots, l)
	state.allLots = append(state.allLots, l)
}

func (r *Reconstructor) applySell(ctx context.Context, tokens map[string]*tokenState, prices *priceMemo, dropped map[string]float64, e *domain.WalletEvent) {
	state := stateFor(tokens, e)
	need := decimal.NewFromFloat(e.AmountUI).Abs()
	if need.IsZero() {
		return
	}

	sellPrice := decimal.Zero
	if price, ok := prices.at(ctx, e.TokenMint, e.BlockTime); ok {
		sellPrice = price
	}
	fee := r.feeUSD(ctx, prices, e)

	for need.Sign() > 0 && len(state.openLots) > 0 {
		front := state.openLots[0]
		take := decimal.Min(need, front.remainingQty)

		proceeds := take.Mul(sellPrice)
		if fee.Sign() > 0 {
			// The transaction fee lands on the first portion matched.
			proceeds = proceeds.Sub(fee)
			fee = decimal.Zero
		}

		front.matched = append(front.matched, domain.MatchedSell{
			Time:        e.BlockTime,
			Qty:         take.InexactFloat64(),
			ProceedsUSD: proceeds.InexactFloat64(),
		})
		front.realizedUSD = front.realizedUSD.Add(proceeds)
		front.remainingQty = front.remainingQty.Sub(take)
		need = need.Sub(take)

		if front.remainingQty.InexactFloat64() <= qtyEpsilon {
			state.openLots = state.openLots[1:]
		}
	}

	// Sells with no matching lot come from history the ledger never saw.
	if need.Sign() > 0 {
		dropped[e.TokenMint] += need.InexactFloat64()
	}
}

// finishToken prices every lot's peak window and folds lots into the token
// aggregate.
func (r *Reconstructor) finishToken(ctx context.Context, state *tokenState, currentPrice float64) *domain.TokenPosition {
	position := &domain.TokenPosition{
		Mint:   state.mint,
		Symbol: state.symbol,
	}

	realized := decimal.Zero
	peakPotential := decimal.Zero
	regret := decimal.Zero
	remaining := decimal.Zero
	price := decimal.NewFromFloat(currentPrice)

	for _, l := range state.allLots {
		r.priceLotPeak(ctx, state.mint, l, price)
		position.Lots = append(position.Lots, exportLot(state.mint, l))

		realized = realized.Add(l.realizedUSD)
		peakPotential = peakPotential.Add(l.peakPotentialUSD)
		regret = regret.Add(l.regretGapUSD)
		remaining = remaining.Add(l.remainingQty)
	}

	position.RealizedUSD = realized.InexactFloat64()
	position.PeakPotentialUSD = peakPotential.InexactFloat64()
	position.RegretGapUSD = regret.InexactFloat64()
	position.RemainingQty = remaining.InexactFloat64()
	position.RemainingUSD = remaining.Mul(price).InexactFloat64()
	return position
}

// priceLotPeak fills the lot's peak and regret metrics from the candle window
// [buyTime, last sell | now]. An oracle miss leaves neutral metrics.
func (r *Reconstructor) priceLotPeak(ctx context.Context, mint string, l *lot, currentPrice decimal.Decimal) {
	end := r.now().Unix()
	if n := len(l.matched); n > 0 {
		end = l.matched[n-1].Time
	}

	resolution := domain.Resolution1h
	if end-l.buyTime > int64(hourlyWindowMax/time.Second) {
		resolution = domain.Resolution1d
	}

	candles, err := r.oracle.Candles(ctx, mint, l.buyTime, end, resolution)
	if err != nil {
		r.logger.Printf("position: candles unavailable for %s: %v", mint, err)
		candles = nil
	}

	if len(candles) == 0 {
		l.peakPotentialUSD = l.realizedUSD
		l.regretGapUSD = decimal.Zero
		return
	}

	peak := candles[0]
	for _, c := range candles[1:] {
		if c.High > peak.High {
			peak = c
		}
	}
	t := peak.T
	high := peak.High
	l.peakTimestamp = &t
	l.peakPriceUSD = &high
	l.peakPotentialUSD = l.buyQty.Mul(decimal.NewFromFloat(high))

	outcome := l.realizedUSD
	if l.remainingQty.InexactFloat64() > qtyEpsilon {
		outcome = outcome.Add(l.remainingQty.Mul(currentPrice))
	}
	l.regretGapUSD = decimal.Max(decimal.Zero, l.peakPotentialUSD.Sub(outcome))
}

// feeUSD converts the event's attributed fee to USD at the native price.
func (r *Reconstructor) feeUSD(ctx context.Context, prices *priceMemo, e *domain.WalletEvent) decimal.Decimal {
	if e.FeeBaseUnits == nil || *e.FeeBaseUnits <= 0 {
		return decimal.Zero
	}
	nativePrice, ok := prices.at(ctx, domain.NativeMint, e.BlockTime)
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromInt(*e.FeeBaseUnits).
		Shift(-domain.NativeDecimals).
		Mul(nativePrice)
}

func stateFor(tokens map[string]*tokenState, e *domain.WalletEvent) *tokenState {
	state, ok := tokens[e.TokenMint]
	if !ok {
		state = &tokenState{mint: e.TokenMint, symbol: e.TokenSymbol}
		tokens[e.TokenMint] = state
	}
	if state.symbol == "" {
		state.symbol = e.TokenSymbol
	}
	return state
}

func exportLot(mint string, l *lot) *domain.Lot {
	out := &domain.Lot{
		ID:               l.id,
		TokenMint:        mint,
		BuyTime:          l.buyTime,
		BuyQty:           l.buyQty.InexactFloat64(),
		RemainingQty:     l.remainingQty.InexactFloat64(),
		MatchedSells:     l.matched,
		RealizedUSD:      l.realizedUSD.InexactFloat64(),
		PeakTimestamp:    l.peakTimestamp,
		PeakPriceUSD:     l.peakPriceUSD,
		PeakPotentialUSD: l.peakPotentialUSD.InexactFloat64(),
		RegretGapUSD:     l.regretGapUSD.InexactFloat64(),
	}
	if l.buyCostUSD != nil {
		cost := l.buyCostUSD.InexactFloat64()
		out.BuyCostUSD = &cost
	}
	return out
}

func formatTime(ts int64) string {
	return decimal.NewFromInt(ts).String()
}

// priceMemo answers point-in-time price lookups, remembering answers (and
// misses) for the run so repeated lookups of one mint at one timestamp cost
// one search.
type priceMemo struct {
	oracle oracle.PriceOracle
	logger *log.Logger
	known  map[string]decimal.Decimal
	misses map[string]struct{}
}

func newPriceMemo(o oracle.PriceOracle, logger *log.Logger) *priceMemo {
	return &priceMemo{
		oracle: o,
		logger: logger,
		known:  make(map[string]decimal.Decimal),
		misses: make(map[string]struct{}),
	}
}

// at returns the USD price of mint at ts: the close of the latest bar at or
// before ts, trying finer resolutions first.
func (m *priceMemo) at(ctx context.Context, mint string, ts int64) (decimal.Decimal, bool) {
	key := mint + "@" + formatTime(ts)
	if price, ok := m.known[key]; ok {
		return price, true
	}
	if _, ok := m.misses[key]; ok {
		return decimal.Zero, false
	}

	for _, try := range priceLookbacks {
		candles, err := m.oracle.Candles(ctx, mint, ts-try.lookback, ts, try.resolution)
		if err != nil {
			m.logger.Printf("position: price lookup failed for %s at %d: %v", mint, ts, err)
			continue
		}
		if len(candles) == 0 {
			continue
		}
		price := decimal.NewFromFloat(candles[len(candles)-1].Close)
		m.known[key] = price
		return price, true
	}

	m.misses[key] = struct{}{}
	return decimal.Zero, false
}
