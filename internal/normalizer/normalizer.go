// Package normalizer derives canonical wallet events from provider
// transactions.
package normalizer

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"github.com/shopspring/decimal"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/helius"
)

// MetadataResolver supplies token metadata for every mint it is asked about.
type MetadataResolver interface {
	Batch(ctx context.Context, mints []string) map[string]*domain.TokenMeta
}

// defaultAMMPrograms are the swap programs recognized without provider help.
var defaultAMMPrograms = map[string]struct{}{
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": {}, // Raydium AMM v4
	"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK": {}, // Raydium CLMM
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  {}, // Orca Whirlpool
	"9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP": {}, // Orca v2
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4":  {}, // Jupiter v6
	"LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo":  {}, // Meteora DLMM
}

// Options configures Normalizer. Zero values select defaults.
type Options struct {
	// Resolver supplies token metadata. Required.
	Resolver MetadataResolver

	// AMMPrograms overrides the swap program allow-list.
	AMMPrograms map[string]struct{}

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Normalizer converts provider transactions into wallet events.
type Normalizer struct {
	resolver MetadataResolver
	amms     map[string]struct{}
	logger   *log.Logger
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	if opts.AMMPrograms == nil {
		opts.AMMPrograms = defaultAMMPrograms
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Normalizer{
		resolver: opts.Resolver,
		amms:     opts.AMMPrograms,
		logger:   opts.Logger,
	}
}

// NormalizeAll resolves metadata for every mint referenced in txs, then
// normalizes each transaction in order. Metadata resolution never blocks
// emission: the resolver falls back to derived entries.
func (n *Normalizer) NormalizeAll(ctx context.Context, wallet string, txs []*helius.Transaction) []domain.WalletEvent {
	meta := n.resolver.Batch(ctx, collectMints(txs))

	var events []domain.WalletEvent
	for _, tx := range txs {
		events = append(events, n.Normalize(wallet, tx, meta)...)
	}
	return events
}

// Normalize derives the event sequence for one (wallet, transaction) pair.
// Events receive dense indices from zero in emission order; swap legs share a
// LinkID and the transaction fee lands on the first SELL, else the first
// event.
func (n *Normalizer) Normalize(wallet string, tx *helius.Transaction, meta map[string]*domain.TokenMeta) []domain.WalletEvent {
	var events []domain.WalletEvent

	blockTime := int64(0)
	if tx.Timestamp != nil {
		blockTime = *tx.Timestamp
	}
	extra := encodeExtra(tx)

	emit := func(mint string, ui float64, raw string, direction string) {
		side := domain.SideBuy
		if direction == domain.DirectionOut {
			side = domain.SideSell
		}
		symbol, decimals := resolveDisplay(mint, meta)
		events = append(events, domain.WalletEvent{
			Wallet:        wallet,
			Signature:     tx.Signature,
			Index:         len(events),
			Slot:          tx.Slot,
			BlockTime:     blockTime,
			Program:       tx.Source,
			Side:          side,
			Direction:     direction,
			TokenMint:     mint,
			TokenSymbol:   symbol,
			TokenDecimals: decimals,
			AmountRaw:     raw,
			AmountUI:      ui,
			Metadata:      extra,
		})
	}

	for _, tr := range tx.TokenTransfers {
		_, decimals := resolveDisplay(tr.Mint, meta)
		switch {
		case tr.FromUserAccount == wallet && tr.ToUserAccount != wallet:
			emit(tr.Mint, -tr.TokenAmount, rawFromUI(-tr.TokenAmount, decimals), domain.DirectionOut)
		case tr.ToUserAccount == wallet && tr.FromUserAccount != wallet:
			emit(tr.Mint, tr.TokenAmount, rawFromUI(tr.TokenAmount, decimals), domain.DirectionIn)
		}
	}

	for _, tr := range tx.NativeTransfers {
		ui := float64(tr.Amount) / lamportsPerSol
		switch {
		case tr.FromUserAccount == wallet && tr.ToUserAccount != wallet:
			emit(domain.NativeMint, -ui, strconv.FormatInt(-tr.Amount, 10), domain.DirectionOut)
		case tr.ToUserAccount == wallet && tr.FromUserAccount != wallet:
			emit(domain.NativeMint, ui, strconv.FormatInt(tr.Amount, 10), domain.DirectionIn)
		}
	}

	if n.isSwap(tx) && len(events) >= 2 {
		linkID := "swap:" + tx.Signature
		events[len(events)-2].LinkID = &linkID
		events[len(events)-1].LinkID = &linkID
	}

	if tx.Fee > 0 && len(events) > 0 {
		fee := tx.Fee
		target := 0
		for i := range events {
			if events[i].Side == domain.SideSell {
				target = i
				break
			}
		}
		events[target].FeeBaseUnits = &fee
	}

	return events
}

// isSwap classifies a transaction as an atomic exchange.
func (n *Normalizer) isSwap(tx *helius.Transaction) bool {
	if tx.Events.HasSwap() {
		return true
	}
	for _, ins := range tx.Instructions {
		if _, ok := n.amms[ins.ProgramID]; ok {
			return true
		}
	}
	if len(tx.TokenTransfers) >= 2 {
		mints := make(map[string]struct{}, 2)
		for _, tr := range tx.TokenTransfers {
			mints[tr.Mint] = struct{}{}
		}
		if len(mints) >= 2 {
			return true
		}
	}
	return false
}

const lamportsPerSol = 1e9

// rawFromUI converts a decimals-adjusted amount back to a base-unit string.
func rawFromUI(ui float64, decimals int) string {
	return decimal.NewFromFloat(ui).Shift(int32(decimals)).Round(0).String()
}

// resolveDisplay returns symbol and decimals for mint, defaulting to the
// derived convention when the resolver produced nothing for it.
func resolveDisplay(mint string, meta map[string]*domain.TokenMeta) (string, int) {
	if m, ok := meta[mint]; ok && m != nil {
		return m.Symbol, m.Decimals
	}
	if mint == domain.NativeMint {
		return "SOL", domain.NativeDecimals
	}
	short := mint
	if len(short) > 8 {
		short = short[:4] + ".." + short[len(short)-4:]
	}
	return short, domain.NativeDecimals
}

// encodeExtra serializes provider classification hints as opaque text.
func encodeExtra(tx *helius.Transaction) string {
	extra := struct {
		Type    string `json:"type,omitempty"`
		Source  string `json:"source,omitempty"`
		HasSwap bool   `json:"hasSwap,omitempty"`
	}{
		Type:    tx.Type,
		Source:  tx.Source,
		HasSwap: tx.Events.HasSwap(),
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// collectMints gathers every mint referenced anywhere in the input set,
// including the native mint when native transfers are present.
func collectMints(txs []*helius.Transaction) []string {
	seen := make(map[string]struct{})
	var mints []string
	add := func(mint string) {
		if mint == "" {
			return
		}
		if _, ok := seen[mint]; ok {
			return
		}
		seen[mint] = struct{}{}
		mints = append(mints, mint)
	}
	for _, tx := range txs {
		for _, tr := range tx.TokenTransfers {
			add(tr.Mint)
		}
		if len(tx.NativeTransfers) > 0 {
			add(domain.NativeMint)
		}
	}
	return mints
}
