// Package reconcile verifies that the store holds every signature the
// provider reports inside a slot window, repairing gaps and recording audits.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/helius"
	"solana-wallet-indexer/internal/ingestion"
	"solana-wallet-indexer/internal/sighash"
	"solana-wallet-indexer/internal/storage"
	"solana-wallet-indexer/internal/workqueue"
)

// Defaults for the rolling reconciliation window.
const (
	DefaultWindowSize = 10_000
	DefaultChunkSize  = 1000
	DefaultChunkPause = 500 * time.Millisecond
)

// ErrNoVerifiedSlot means the wallet has no verified slot to anchor the
// rolling window on. Run backfill and a tail sync first.
var ErrNoVerifiedSlot = errors.New("no verified slot for wallet")

// Result is the outcome of reconciling one slot range.
type Result struct {
	Wallet           string
	FromSlot         int64
	ToSlot           int64
	ProviderCount    int
	StoreCount       int
	EventCount       int
	Repaired         int
	SignatureSetHash string
	OK               bool
}

// Options configures Auditor. Zero values select defaults.
type Options struct {
	Source     ingestion.TransactionSource
	Normalizer ingestion.Normalizer

	RawStore   storage.RawTransactionStore
	EventStore storage.WalletEventStore
	SyncStore  storage.SyncStateStore
	AuditStore storage.ReconcileAuditStore

	// Queue gates provider calls; shared with the ingestion driver so both
	// compete for the same provider budget.
	Queue *workqueue.Queue

	Retry     workqueue.RetryConfig
	PageLimit int

	// ChunkPause spaces rolling-window chunks apart.
	ChunkPause time.Duration

	Logger *log.Logger
}

// Auditor re-checks slot windows against the provider.
type Auditor struct {
	source     ingestion.TransactionSource
	normalizer ingestion.Normalizer
	raws       storage.RawTransactionStore
	events     storage.WalletEventStore
	sync       storage.SyncStateStore
	audits     storage.ReconcileAuditStore
	queue      *workqueue.Queue
	retry      workqueue.RetryConfig
	pageLimit  int
	chunkPause time.Duration
	logger     *log.Logger
}

// New creates an Auditor.
func New(opts Options) *Auditor {
	if opts.Queue == nil {
		opts.Queue = workqueue.New(2, 2)
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = workqueue.DefaultRetryConfig()
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = ingestion.DefaultPageLimit
	}
	if opts.ChunkPause <= 0 {
		opts.ChunkPause = DefaultChunkPause
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Auditor{
		source:     opts.Source,
		normalizer: opts.Normalizer,
		raws:       opts.RawStore,
		events:     opts.EventStore,
		sync:       opts.SyncStore,
		audits:     opts.AuditStore,
		queue:      opts.Queue,
		retry:      opts.Retry,
		pageLimit:  opts.PageLimit,
		chunkPause: opts.ChunkPause,
		logger:     opts.Logger,
	}
}

// ReconcileSlotRange re-fetches the wallet's history covering
// [fromSlot, toSlot], repairs any signatures the store is missing, and
// appends an audit row. On failure an ok=false audit is still appended where
// possible.
func (a *Auditor) ReconcileSlotRange(ctx context.Context, wallet string, fromSlot, toSlot int64) (*Result, error) {
	result := &Result{Wallet: wallet, FromSlot: fromSlot, ToSlot: toSlot}

	provider, err := a.fetchRange(ctx, wallet, fromSlot, toSlot)
	if err != nil {
		a.appendAudit(ctx, result)
		return result, fmt.Errorf("fetch provider range: %w", err)
	}
	result.ProviderCount = len(provider)

	providerSigs := make([]string, 0, len(provider))
	for sig := range provider {
		providerSigs = append(providerSigs, sig)
	}

	stored, err := a.raws.SignaturesBySlotRange(ctx, fromSlot, toSlot)
	if err != nil {
		a.appendAudit(ctx, result)
		return result, fmt.Errorf("query stored signatures: %w", err)
	}

	missing := diff(providerSigs, stored)
	if len(missing) > 0 {
		a.logger.Printf("reconcile: %s missing %d signatures in [%d, %d]", wallet, len(missing), fromSlot, toSlot)
		if err := a.repair(ctx, wallet, provider, missing); err != nil {
			a.appendAudit(ctx, result)
			return result, fmt.Errorf("repair missing signatures: %w", err)
		}
		result.Repaired = len(missing)

		stored, err = a.raws.SignaturesBySlotRange(ctx, fromSlot, toSlot)
		if err != nil {
			a.appendAudit(ctx, result)
			return result, fmt.Errorf("re-query stored signatures: %w", err)
		}
	}

	eventCount, err := a.events.CountBySlotRange(ctx, wallet, fromSlot, toSlot)
	if err != nil {
		a.appendAudit(ctx, result)
		return result, fmt.Errorf("count wallet events: %w", err)
	}

	result.StoreCount = len(stored)
	result.EventCount = eventCount
	result.SignatureSetHash = sighash.Hash(stored)
	result.OK = result.SignatureSetHash == sighash.Hash(providerSigs) &&
		len(diff(providerSigs, stored)) == 0

	a.appendAudit(ctx, result)
	return result, nil
}

// ReconcileRecentSlots walks the rolling window below the wallet's verified
// slot in fixed-size chunks, pausing between chunks so reconciliation does
// not starve ingestion of provider budget. windowSize <= 0 uses the default.
func (a *Auditor) ReconcileRecentSlots(ctx context.Context, wallet string, windowSize int64) ([]*Result, error) {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	state, err := a.sync.Get(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}
	if state.VerifiedSlot == nil {
		return nil, fmt.Errorf("reconcile %s: %w", wallet, ErrNoVerifiedSlot)
	}

	top := *state.VerifiedSlot
	from := top - windowSize
	if from < 0 {
		from = 0
	}

	var results []*Result
	for lo := from; lo <= top; lo += DefaultChunkSize {
		hi := lo + DefaultChunkSize - 1
		if hi > top {
			hi = top
		}

		result, err := a.ReconcileSlotRange(ctx, wallet, lo, hi)
		results = append(results, result)
		if err != nil {
			return results, err
		}

		if hi < top {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(a.chunkPause):
			}
		}
	}
	return results, nil
}

// fetchRange pages backward through the provider until a page's minimum slot
// falls below fromSlot, keeping items whose slot is inside the window.
func (a *Auditor) fetchRange(ctx context.Context, wallet string, fromSlot, toSlot int64) (map[string]*helius.Transaction, error) {
	provider := make(map[string]*helius.Transaction)
	before := ""

	for {
		var txs []*helius.Transaction
		_, err := workqueue.Retry(ctx, a.retry, helius.IsRetryable, func(ctx context.Context) error {
			return a.queue.Do(ctx, func(ctx context.Context) error {
				var fetchErr error
				txs, fetchErr = a.source.Transactions(ctx, wallet, before, a.pageLimit)
				return fetchErr
			})
		})
		if err != nil {
			return nil, err
		}
		if len(txs) == 0 {
			return provider, nil
		}

		minSlot := txs[0].Slot
		for _, tx := range txs {
			if tx.Slot < minSlot {
				minSlot = tx.Slot
			}
			if tx.Slot >= fromSlot && tx.Slot <= toSlot {
				provider[tx.Signature] = tx
			}
		}
		if minSlot < fromSlot {
			return provider, nil
		}
		before = helius.NextBefore(txs)
	}
}

// repair re-ingests the missing transactions: raw rows first, derived events
// after, both idempotent upserts.
func (a *Auditor) repair(ctx context.Context, wallet string, provider map[string]*helius.Transaction, missing []string) error {
	txs := make([]*helius.Transaction, 0, len(missing))
	raws := make([]*domain.RawTransaction, 0, len(missing))
	for _, sig := range missing {
		tx := provider[sig]
		if tx == nil {
			continue
		}
		txs = append(txs, tx)
		raws = append(raws, &domain.RawTransaction{
			Signature: tx.Signature,
			Slot:      tx.Slot,
			BlockTime: tx.Timestamp,
			Payload:   tx.Raw,
		})
	}

	if err := a.raws.UpsertBulk(ctx, raws); err != nil {
		return fmt.Errorf("persist raw transactions: %w", err)
	}

	events := a.normalizer.NormalizeAll(ctx, wallet, txs)
	if len(events) > 0 {
		refs := make([]*domain.WalletEvent, len(events))
		for i := range events {
			refs[i] = &events[i]
		}
		if err := a.events.UpsertBulk(ctx, refs); err != nil {
			return fmt.Errorf("persist wallet events: %w", err)
		}
	}
	return nil
}

// appendAudit records the result. Audit failure is logged, not returned: the
// reconciliation outcome matters more than the bookkeeping row.
func (a *Auditor) appendAudit(ctx context.Context, result *Result) {
	audit := &domain.ReconcileAudit{
		Wallet:           result.Wallet,
		FromSlot:         result.FromSlot,
		ToSlot:           result.ToSlot,
		CountRaw:         result.StoreCount,
		CountWalletTx:    result.EventCount,
		SignatureSetHash: result.SignatureSetHash,
		OK:               result.OK,
	}
	if err := a.audits.Append(ctx, audit); err != nil {
		a.logger.Printf("reconcile: append audit failed for %s: %v", result.Wallet, err)
	}
}

// diff returns the members of want absent from have, in want's order.
func diff(want, have []string) []string {
	haveSet := make(map[string]struct{}, len(have))
	for _, sig := range have {
		haveSet[sig] = struct{}{}
	}
	var out []string
	for _, sig := range want {
		if _, ok := haveSet[sig]; !ok {
			out = append(out, sig)
		}
	}
	return out
}
