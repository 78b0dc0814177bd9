package clickhouse

import (
	"context"
	"fmt"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// UpsertBulk inserts or replaces multiple candles. ReplacingMergeTree folds
// duplicate (mint, resolution, t) rows at merge time; GetRange collapses them
// on read, so re-inserting the same bar is safe.
func (s *CandleStore) UpsertBulk(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (mint, resolution, t, open, high, low, close)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(c.Mint, c.Resolution, uint64(c.T), c.Open, c.High, c.Low, c.Close)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRange retrieves candles for a mint and resolution with t in [start, end],
// ordered by t ASC. Duplicate rows awaiting a merge are collapsed to the
// latest insert.
func (s *CandleStore) GetRange(ctx context.Context, mint, resolution string, start, end int64) ([]*domain.Candle, error) {
	query := `
		SELECT mint, resolution, t,
			argMax(open, inserted_at), argMax(high, inserted_at),
			argMax(low, inserted_at), argMax(close, inserted_at)
		FROM candles
		WHERE mint = ? AND resolution = ? AND t >= ? AND t <= ?
		GROUP BY mint, resolution, t
		ORDER BY t ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, resolution, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []*domain.Candle
	for rows.Next() {
		var c domain.Candle
		var t uint64
		err := rows.Scan(&c.Mint, &c.Resolution, &t, &c.Open, &c.High, &c.Low, &c.Close)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		c.T = int64(t)
		candles = append(candles, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
