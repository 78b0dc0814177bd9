package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

// ReconcileAuditStore implements storage.ReconcileAuditStore using PostgreSQL.
type ReconcileAuditStore struct {
	pool *Pool
}

// NewReconcileAuditStore creates a new ReconcileAuditStore.
func NewReconcileAuditStore(pool *Pool) *ReconcileAuditStore {
	return &ReconcileAuditStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReconcileAuditStore = (*ReconcileAuditStore)(nil)

// Append adds a new audit row.
func (s *ReconcileAuditStore) Append(ctx context.Context, audit *domain.ReconcileAudit) error {
	query := `
		INSERT INTO reconcile_audits (
			wallet, from_slot, to_slot, count_raw, count_wallet_tx,
			signature_set_hash, ok, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	createdAt := audit.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	err := s.pool.QueryRow(ctx, query,
		audit.Wallet, audit.FromSlot, audit.ToSlot, audit.CountRaw, audit.CountWalletTx,
		audit.SignatureSetHash, audit.OK, createdAt).Scan(&audit.ID)
	if err != nil {
		return fmt.Errorf("append reconcile audit: %w", err)
	}
	audit.CreatedAt = createdAt
	return nil
}

// GetByWallet retrieves audits for a wallet ordered by created_at ASC, id ASC.
func (s *ReconcileAuditStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.ReconcileAudit, error) {
	query := `
		SELECT id, wallet, from_slot, to_slot, count_raw, count_wallet_tx,
			signature_set_hash, ok, created_at
		FROM reconcile_audits
		WHERE wallet = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("query reconcile audits: %w", err)
	}
	defer rows.Close()

	var audits []*domain.ReconcileAudit
	for rows.Next() {
		var a domain.ReconcileAudit
		err := rows.Scan(
			&a.ID, &a.Wallet, &a.FromSlot, &a.ToSlot, &a.CountRaw, &a.CountWalletTx,
			&a.SignatureSetHash, &a.OK, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan reconcile audit row: %w", err)
		}
		audits = append(audits, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reconcile audit rows: %w", err)
	}

	return audits, nil
}
