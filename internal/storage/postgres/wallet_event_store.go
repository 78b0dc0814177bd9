package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

// WalletEventStore implements storage.WalletEventStore using PostgreSQL.
type WalletEventStore struct {
	pool *Pool
}

// NewWalletEventStore creates a new WalletEventStore.
func NewWalletEventStore(pool *Pool) *WalletEventStore {
	return &WalletEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletEventStore = (*WalletEventStore)(nil)

const upsertWalletEventQuery = `
	INSERT INTO wallet_events (
		wallet, signature, event_index, slot, block_time, program,
		side, direction, token_mint, token_symbol, token_decimals,
		amount_raw, amount_ui, amount_usd, price_usd_at_tx,
		link_id, fee_base_units, metadata, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (wallet, signature, event_index) DO UPDATE SET
		slot = EXCLUDED.slot,
		block_time = EXCLUDED.block_time,
		program = EXCLUDED.program,
		side = EXCLUDED.side,
		direction = EXCLUDED.direction,
		token_mint = EXCLUDED.token_mint,
		token_symbol = EXCLUDED.token_symbol,
		token_decimals = EXCLUDED.token_decimals,
		amount_raw = EXCLUDED.amount_raw,
		amount_ui = EXCLUDED.amount_ui,
		amount_usd = EXCLUDED.amount_usd,
		price_usd_at_tx = EXCLUDED.price_usd_at_tx,
		link_id = EXCLUDED.link_id,
		fee_base_units = EXCLUDED.fee_base_units,
		metadata = EXCLUDED.metadata
`

// Upsert inserts or replaces a single event.
func (s *WalletEventStore) Upsert(ctx context.Context, e *domain.WalletEvent) error {
	now := time.Now().UnixMilli()
	_, err := s.pool.Exec(ctx, upsertWalletEventQuery,
		e.Wallet, e.Signature, e.Index, e.Slot, e.BlockTime, e.Program,
		e.Side, e.Direction, e.TokenMint, e.TokenSymbol, e.TokenDecimals,
		e.AmountRaw, e.AmountUI, e.AmountUSD, e.PriceUSDAtTx,
		e.LinkID, e.FeeBaseUnits, e.Metadata, now)
	if err != nil {
		return fmt.Errorf("upsert wallet event: %w", err)
	}
	return nil
}

// UpsertBulk inserts or replaces multiple events atomically.
func (s *WalletEventStore) UpsertBulk(ctx context.Context, events []*domain.WalletEvent) error {
	if len(events) == 0 {
		return nil
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx)

	now := time.Now().UnixMilli()
	for _, e := range events {
		_, err := dbTx.Exec(ctx, upsertWalletEventQuery,
			e.Wallet, e.Signature, e.Index, e.Slot, e.BlockTime, e.Program,
			e.Side, e.Direction, e.TokenMint, e.TokenSymbol, e.TokenDecimals,
			e.AmountRaw, e.AmountUI, e.AmountUSD, e.PriceUSDAtTx,
			e.LinkID, e.FeeBaseUnits, e.Metadata, now)
		if err != nil {
			return fmt.Errorf("upsert wallet event in bulk: %w", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByWallet retrieves all events for a wallet ordered by
// block_time ASC, signature ASC, event_index ASC.
func (s *WalletEventStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.WalletEvent, error) {
	query := `
		SELECT wallet, signature, event_index, slot, block_time, program,
			side, direction, token_mint, token_symbol, token_decimals,
			amount_raw, amount_ui, amount_usd, price_usd_at_tx,
			link_id, fee_base_units, metadata, created_at
		FROM wallet_events
		WHERE wallet = $1
		ORDER BY block_time ASC, signature ASC, event_index ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("query wallet events: %w", err)
	}
	defer rows.Close()

	var events []*domain.WalletEvent
	for rows.Next() {
		var e domain.WalletEvent
		err := rows.Scan(
			&e.Wallet, &e.Signature, &e.Index, &e.Slot, &e.BlockTime, &e.Program,
			&e.Side, &e.Direction, &e.TokenMint, &e.TokenSymbol, &e.TokenDecimals,
			&e.AmountRaw, &e.AmountUI, &e.AmountUSD, &e.PriceUSDAtTx,
			&e.LinkID, &e.FeeBaseUnits, &e.Metadata, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan wallet event row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet event rows: %w", err)
	}

	return events, nil
}

// CountBySlotRange counts events for a wallet with slot in [fromSlot, toSlot].
func (s *WalletEventStore) CountBySlotRange(ctx context.Context, wallet string, fromSlot, toSlot int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM wallet_events WHERE wallet = $1 AND slot >= $2 AND slot <= $3`,
		wallet, fromSlot, toSlot).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count wallet events by slot range: %w", err)
	}
	return count, nil
}
