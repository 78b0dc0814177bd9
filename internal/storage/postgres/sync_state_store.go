package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

// SyncStateStore implements storage.SyncStateStore using PostgreSQL.
type SyncStateStore struct {
	pool *Pool
}

// NewSyncStateStore creates a new SyncStateStore.
func NewSyncStateStore(pool *Pool) *SyncStateStore {
	return &SyncStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SyncStateStore = (*SyncStateStore)(nil)

// Get retrieves sync state for a wallet. Returns ErrNotFound if absent.
func (s *SyncStateStore) Get(ctx context.Context, wallet string) (*domain.SyncState, error) {
	query := `
		SELECT wallet, last_before, verified_slot, full_scan_at, created_at, updated_at
		FROM sync_state
		WHERE wallet = $1
	`

	var state domain.SyncState
	err := s.pool.QueryRow(ctx, query, wallet).Scan(
		&state.Wallet, &state.LastBefore, &state.VerifiedSlot,
		&state.FullScanAt, &state.CreatedAt, &state.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get sync state: %w", err)
	}
	return &state, nil
}

// Upsert inserts or replaces the state for state.Wallet.
func (s *SyncStateStore) Upsert(ctx context.Context, state *domain.SyncState) error {
	query := `
		INSERT INTO sync_state (wallet, last_before, verified_slot, full_scan_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (wallet) DO UPDATE SET
			last_before = EXCLUDED.last_before,
			verified_slot = EXCLUDED.verified_slot,
			full_scan_at = EXCLUDED.full_scan_at,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UnixMilli()
	_, err := s.pool.Exec(ctx, query,
		state.Wallet, state.LastBefore, state.VerifiedSlot, state.FullScanAt, now)
	if err != nil {
		return fmt.Errorf("upsert sync state: %w", err)
	}
	return nil
}
