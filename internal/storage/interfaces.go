package storage

import (
	"context"

	"solana-wallet-indexer/internal/domain"
)

// RawTransactionStore provides access to raw_transactions storage.
// All writes are upserts keyed by signature.
type RawTransactionStore interface {
	// Upsert inserts or replaces a transaction by signature.
	Upsert(ctx context.Context, tx *domain.RawTransaction) error

	// UpsertBulk inserts or replaces multiple transactions atomically.
	UpsertBulk(ctx context.Context, txs []*domain.RawTransaction) error

	// GetBySignature retrieves a transaction. Returns ErrNotFound if absent.
	GetBySignature(ctx context.Context, signature string) (*domain.RawTransaction, error)

	// ExistsBySignature reports whether a transaction is stored.
	ExistsBySignature(ctx context.Context, signature string) (bool, error)

	// SignaturesBySlotRange returns stored signatures with slot in [fromSlot, toSlot].
	SignaturesBySlotRange(ctx context.Context, fromSlot, toSlot int64) ([]string, error)
}

// WalletEventStore provides access to wallet_events storage.
// All writes are upserts keyed by (wallet, signature, index).
type WalletEventStore interface {
	// Upsert inserts or replaces a single event.
	Upsert(ctx context.Context, e *domain.WalletEvent) error

	// UpsertBulk inserts or replaces multiple events atomically.
	UpsertBulk(ctx context.Context, events []*domain.WalletEvent) error

	// GetByWallet retrieves all events for a wallet ordered by
	// block_time ASC, signature ASC, index ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.WalletEvent, error)

	// CountBySlotRange counts events for a wallet with slot in [fromSlot, toSlot].
	CountBySlotRange(ctx context.Context, wallet string, fromSlot, toSlot int64) (int, error)
}

// SyncStateStore provides access to sync_state storage, keyed by wallet.
type SyncStateStore interface {
	// Get retrieves sync state for a wallet. Returns ErrNotFound if absent.
	Get(ctx context.Context, wallet string) (*domain.SyncState, error)

	// Upsert inserts or replaces the state for state.Wallet.
	Upsert(ctx context.Context, state *domain.SyncState) error
}

// ReconcileAuditStore provides access to reconcile_audits storage. Append-only.
type ReconcileAuditStore interface {
	// Append adds a new audit row.
	Append(ctx context.Context, audit *domain.ReconcileAudit) error

	// GetByWallet retrieves audits for a wallet ordered by created_at ASC, id ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.ReconcileAudit, error)
}

// TokenMetaStore provides access to token_meta storage, keyed by mint.
type TokenMetaStore interface {
	// Upsert inserts or replaces metadata for meta.Mint.
	Upsert(ctx context.Context, meta *domain.TokenMeta) error

	// GetByMint retrieves metadata. Returns ErrNotFound if absent.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMeta, error)

	// GetByMints retrieves all stored entries among the given mints.
	// Missing mints are simply absent from the result.
	GetByMints(ctx context.Context, mints []string) (map[string]*domain.TokenMeta, error)
}

// CandleStore provides access to candles storage, keyed by (mint, resolution, t).
type CandleStore interface {
	// UpsertBulk inserts or replaces multiple candles.
	UpsertBulk(ctx context.Context, candles []*domain.Candle) error

	// GetRange retrieves candles for a mint and resolution with t in
	// [start, end], ordered by t ASC.
	GetRange(ctx context.Context, mint, resolution string, start, end int64) ([]*domain.Candle, error)
}
