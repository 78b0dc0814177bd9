package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

// TokenMetaStore implements storage.TokenMetaStore using PostgreSQL.
type TokenMetaStore struct {
	pool *Pool
}

// NewTokenMetaStore creates a new TokenMetaStore.
func NewTokenMetaStore(pool *Pool) *TokenMetaStore {
	return &TokenMetaStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenMetaStore = (*TokenMetaStore)(nil)

// Upsert inserts or replaces metadata for meta.Mint.
func (s *TokenMetaStore) Upsert(ctx context.Context, meta *domain.TokenMeta) error {
	query := `
		INSERT INTO token_meta (mint, symbol, name, decimals, source, fetched_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mint) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			decimals = EXCLUDED.decimals,
			source = EXCLUDED.source,
			fetched_at = EXCLUDED.fetched_at
	`

	now := time.Now().UnixMilli()
	fetchedAt := meta.FetchedAt
	if fetchedAt == 0 {
		fetchedAt = now
	}

	_, err := s.pool.Exec(ctx, query,
		meta.Mint, meta.Symbol, meta.Name, meta.Decimals, meta.Source, fetchedAt, now)
	if err != nil {
		return fmt.Errorf("upsert token meta: %w", err)
	}
	return nil
}

// GetByMint retrieves metadata. Returns ErrNotFound if absent.
func (s *TokenMetaStore) GetByMint(ctx context.Context, mint string) (*domain.TokenMeta, error) {
	query := `
		SELECT mint, symbol, name, decimals, source, fetched_at, created_at
		FROM token_meta
		WHERE mint = $1
	`

	var meta domain.TokenMeta
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&meta.Mint, &meta.Symbol, &meta.Name, &meta.Decimals,
		&meta.Source, &meta.FetchedAt, &meta.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token meta: %w", err)
	}
	return &meta, nil
}

// GetByMints retrieves all stored entries among the given mints.
func (s *TokenMetaStore) GetByMints(ctx context.Context, mints []string) (map[string]*domain.TokenMeta, error) {
	if len(mints) == 0 {
		return map[string]*domain.TokenMeta{}, nil
	}

	query := `
		SELECT mint, symbol, name, decimals, source, fetched_at, created_at
		FROM token_meta
		WHERE mint = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, mints)
	if err != nil {
		return nil, fmt.Errorf("query token meta by mints: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*domain.TokenMeta)
	for rows.Next() {
		var meta domain.TokenMeta
		err := rows.Scan(
			&meta.Mint, &meta.Symbol, &meta.Name, &meta.Decimals,
			&meta.Source, &meta.FetchedAt, &meta.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan token meta row: %w", err)
		}
		result[meta.Mint] = &meta
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token meta rows: %w", err)
	}

	return result, nil
}
