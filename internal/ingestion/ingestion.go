// Package ingestion drives wallet history into the store: full backfill and
// incremental tail sync against the transaction provider.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/helius"
	"solana-wallet-indexer/internal/storage"
	"solana-wallet-indexer/internal/workqueue"
)

// Default paging bounds.
const (
	DefaultPageLimit = 1000
	DefaultMaxPages  = 1000
)

// ErrBackfillRequired means tail sync was asked for a wallet that has never
// been backfilled. Run backfill first.
var ErrBackfillRequired = errors.New("run backfill first")

// TransactionSource is the provider surface the driver consumes. Implemented
// by helius.Client.
type TransactionSource interface {
	Transactions(ctx context.Context, wallet, before string, limit int) ([]*helius.Transaction, error)
}

// Normalizer converts a batch of provider transactions into wallet events.
type Normalizer interface {
	NormalizeAll(ctx context.Context, wallet string, txs []*helius.Transaction) []domain.WalletEvent
}

// Stats summarizes one driver run.
type Stats struct {
	PagesFetched  int
	RawTxCount    int
	WalletTxCount int
	FirstSlot     int64 // highest slot seen
	LastSlot      int64 // lowest slot seen
	Retries       int
	Duration      time.Duration
}

// Options configures Backfiller. Zero values select defaults.
type Options struct {
	Source     TransactionSource
	Normalizer Normalizer

	RawStore   storage.RawTransactionStore
	EventStore storage.WalletEventStore
	SyncStore  storage.SyncStateStore

	// Queue gates provider calls. Defaults to a 2-worker, 2 rps queue.
	Queue *workqueue.Queue

	// Retry wraps each provider call. Defaults to the standard budget.
	Retry workqueue.RetryConfig

	// PageLimit caps items per page; MaxPages bounds a backfill run.
	PageLimit int
	MaxPages  int

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Backfiller is the per-wallet ingestion driver. It is single-threaded per
// wallet; callers wanting cross-wallet parallelism run one call per wallet.
type Backfiller struct {
	source     TransactionSource
	normalizer Normalizer
	raws       storage.RawTransactionStore
	events     storage.WalletEventStore
	sync       storage.SyncStateStore
	queue      *workqueue.Queue
	retry      workqueue.RetryConfig
	pageLimit  int
	maxPages   int
	logger     *log.Logger
}

// New creates a Backfiller.
func New(opts Options) *Backfiller {
	if opts.Queue == nil {
		opts.Queue = workqueue.New(2, 2)
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = workqueue.DefaultRetryConfig()
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = DefaultPageLimit
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Backfiller{
		source:     opts.Source,
		normalizer: opts.Normalizer,
		raws:       opts.RawStore,
		events:     opts.EventStore,
		sync:       opts.SyncStore,
		queue:      opts.Queue,
		retry:      opts.Retry,
		pageLimit:  opts.PageLimit,
		maxPages:   opts.MaxPages,
		logger:     opts.Logger,
	}
}

// Backfill pages backward through the wallet's full history, persisting raw
// transactions and derived events as it goes. The cursor is checkpointed to
// SyncState after every page, so an aborted run resumes where it stopped.
// maxPages <= 0 uses the configured bound.
func (b *Backfiller) Backfill(ctx context.Context, wallet string, maxPages int) (*Stats, error) {
	if maxPages <= 0 {
		maxPages = b.maxPages
	}
	start := time.Now()
	stats := &Stats{}

	state, err := b.loadOrCreateState(ctx, wallet)
	if err != nil {
		return stats, err
	}

	before := ""
	if state.LastBefore != nil {
		before = *state.LastBefore
	}

	cursorReset := false
	exhausted := false

	for page := 0; page < maxPages; page++ {
		txs, err := b.fetchPage(ctx, wallet, before, stats)
		if err != nil {
			if errors.Is(err, helius.ErrCursorInvalid) && !cursorReset {
				// Provider rejected the checkpointed cursor. Reset it once
				// and retry the same page from the top of history.
				cursorReset = true
				before = ""
				state.LastBefore = nil
				if serr := b.saveState(ctx, state); serr != nil {
					return stats, serr
				}
				b.logger.Printf("ingestion: cursor rejected for %s, restarting from newest", wallet)
				page--
				continue
			}
			return stats, fmt.Errorf("backfill page %d: %w", page+1, err)
		}

		if len(txs) == 0 {
			exhausted = true
			break
		}

		if err := b.persistPage(ctx, wallet, txs, stats); err != nil {
			return stats, err
		}

		before = helius.NextBefore(txs)
		state.LastBefore = &before
		if err := b.saveState(ctx, state); err != nil {
			return stats, err
		}
	}

	if exhausted {
		now := time.Now().UnixMilli()
		state.LastBefore = nil
		state.FullScanAt = &now
		if err := b.saveState(ctx, state); err != nil {
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// SyncTail fetches the newest page and persists the prefix of items the store
// has not seen yet, stopping at the first known signature. It requires a
// prior backfill so the unknown suffix is bounded.
func (b *Backfiller) SyncTail(ctx context.Context, wallet string) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	state, err := b.sync.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return stats, fmt.Errorf("sync tail for %s: %w", wallet, ErrBackfillRequired)
		}
		return stats, fmt.Errorf("load sync state: %w", err)
	}

	txs, err := b.fetchPage(ctx, wallet, "", stats)
	if err != nil {
		return stats, fmt.Errorf("sync tail page: %w", err)
	}

	// Items arrive newest-first; everything before the first known signature
	// is new.
	var fresh []*helius.Transaction
	for _, tx := range txs {
		exists, err := b.raws.ExistsBySignature(ctx, tx.Signature)
		if err != nil {
			return stats, fmt.Errorf("check signature %s: %w", tx.Signature, err)
		}
		if exists {
			break
		}
		fresh = append(fresh, tx)
	}

	if len(fresh) > 0 {
		if err := b.persistPage(ctx, wallet, fresh, stats); err != nil {
			return stats, err
		}

		maxSlot := fresh[0].Slot
		for _, tx := range fresh {
			if tx.Slot > maxSlot {
				maxSlot = tx.Slot
			}
		}
		if state.VerifiedSlot == nil || maxSlot > *state.VerifiedSlot {
			state.VerifiedSlot = &maxSlot
		}
		if err := b.saveState(ctx, state); err != nil {
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// fetchPage pulls one page through the work queue, retrying transient
// failures. Retries re-enter the queue so they compete fairly for slots.
func (b *Backfiller) fetchPage(ctx context.Context, wallet, before string, stats *Stats) ([]*helius.Transaction, error) {
	var txs []*helius.Transaction
	retries, err := workqueue.Retry(ctx, b.retry, helius.IsRetryable, func(ctx context.Context) error {
		return b.queue.Do(ctx, func(ctx context.Context) error {
			var fetchErr error
			txs, fetchErr = b.source.Transactions(ctx, wallet, before, b.pageLimit)
			return fetchErr
		})
	})
	stats.Retries += retries
	if err != nil {
		return nil, err
	}
	stats.PagesFetched++
	return txs, nil
}

// persistPage upserts raw transactions, derives events and upserts those too,
// then folds the page into the slot bounds. Persistence is idempotent, so a
// partially persisted page is healed by the next run.
func (b *Backfiller) persistPage(ctx context.Context, wallet string, txs []*helius.Transaction, stats *Stats) error {
	raws := make([]*domain.RawTransaction, 0, len(txs))
	for _, tx := range txs {
		raws = append(raws, rawFromProvider(tx))
	}
	if err := b.raws.UpsertBulk(ctx, raws); err != nil {
		return fmt.Errorf("persist raw transactions: %w", err)
	}
	stats.RawTxCount += len(raws)

	events := b.normalizer.NormalizeAll(ctx, wallet, txs)
	if len(events) > 0 {
		refs := make([]*domain.WalletEvent, len(events))
		for i := range events {
			refs[i] = &events[i]
		}
		if err := b.events.UpsertBulk(ctx, refs); err != nil {
			return fmt.Errorf("persist wallet events: %w", err)
		}
	}
	stats.WalletTxCount += len(events)

	for _, tx := range txs {
		if stats.FirstSlot == 0 || tx.Slot > stats.FirstSlot {
			stats.FirstSlot = tx.Slot
		}
		if stats.LastSlot == 0 || tx.Slot < stats.LastSlot {
			stats.LastSlot = tx.Slot
		}
	}
	return nil
}

func (b *Backfiller) loadOrCreateState(ctx context.Context, wallet string) (*domain.SyncState, error) {
	state, err := b.sync.Get(ctx, wallet)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load sync state: %w", err)
	}
	state = &domain.SyncState{
		Wallet:    wallet,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := b.saveState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (b *Backfiller) saveState(ctx context.Context, state *domain.SyncState) error {
	state.UpdatedAt = time.Now().UnixMilli()
	if err := b.sync.Upsert(ctx, state); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// rawFromProvider maps a provider transaction to its persisted form.
func rawFromProvider(tx *helius.Transaction) *domain.RawTransaction {
	return &domain.RawTransaction{
		Signature: tx.Signature,
		Slot:      tx.Slot,
		BlockTime: tx.Timestamp,
		Payload:   tx.Raw,
	}
}
