package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

// RawTransactionStore implements storage.RawTransactionStore using PostgreSQL.
type RawTransactionStore struct {
	pool *Pool
}

// NewRawTransactionStore creates a new RawTransactionStore.
func NewRawTransactionStore(pool *Pool) *RawTransactionStore {
	return &RawTransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawTransactionStore = (*RawTransactionStore)(nil)

const upsertRawTransactionQuery = `
	INSERT INTO raw_transactions (signature, slot, block_time, payload, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5)
	ON CONFLICT (signature) DO UPDATE SET
		slot = EXCLUDED.slot,
		block_time = EXCLUDED.block_time,
		payload = EXCLUDED.payload,
		updated_at = EXCLUDED.updated_at
`

// Upsert inserts or replaces a transaction by signature.
func (s *RawTransactionStore) Upsert(ctx context.Context, tx *domain.RawTransaction) error {
	now := time.Now().UnixMilli()
	_, err := s.pool.Exec(ctx, upsertRawTransactionQuery,
		tx.Signature, tx.Slot, tx.BlockTime, tx.Payload, now)
	if err != nil {
		return fmt.Errorf("upsert raw transaction: %w", err)
	}
	return nil
}

// UpsertBulk inserts or replaces multiple transactions atomically.
func (s *RawTransactionStore) UpsertBulk(ctx context.Context, txs []*domain.RawTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx)

	now := time.Now().UnixMilli()
	for _, tx := range txs {
		_, err := dbTx.Exec(ctx, upsertRawTransactionQuery,
			tx.Signature, tx.Slot, tx.BlockTime, tx.Payload, now)
		if err != nil {
			return fmt.Errorf("upsert raw transaction in bulk: %w", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySignature retrieves a transaction. Returns ErrNotFound if absent.
func (s *RawTransactionStore) GetBySignature(ctx context.Context, signature string) (*domain.RawTransaction, error) {
	query := `
		SELECT signature, slot, block_time, payload, created_at, updated_at
		FROM raw_transactions
		WHERE signature = $1
	`

	var tx domain.RawTransaction
	err := s.pool.QueryRow(ctx, query, signature).Scan(
		&tx.Signature, &tx.Slot, &tx.BlockTime, &tx.Payload, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get raw transaction: %w", err)
	}
	return &tx, nil
}

// ExistsBySignature reports whether a transaction is stored.
func (s *RawTransactionStore) ExistsBySignature(ctx context.Context, signature string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM raw_transactions WHERE signature = $1)`,
		signature).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check raw transaction exists: %w", err)
	}
	return exists, nil
}

// SignaturesBySlotRange returns stored signatures with slot in [fromSlot, toSlot].
func (s *RawTransactionStore) SignaturesBySlotRange(ctx context.Context, fromSlot, toSlot int64) ([]string, error) {
	query := `
		SELECT signature
		FROM raw_transactions
		WHERE slot >= $1 AND slot <= $2
		ORDER BY slot ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, fromSlot, toSlot)
	if err != nil {
		return nil, fmt.Errorf("get signatures by slot range: %w", err)
	}
	defer rows.Close()

	var sigs []string
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			return nil, fmt.Errorf("scan signature row: %w", err)
		}
		sigs = append(sigs, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signature rows: %w", err)
	}

	return sigs, nil
}
