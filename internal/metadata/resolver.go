// Package metadata resolves token mints to symbol, name and decimals through
// a chain of sources with a persistent cache and a derived fallback.
package metadata

import (
	"context"
	"errors"
	"log"
	"time"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
	"solana-wallet-indexer/internal/workqueue"
)

// DerivedDecimals is assumed when no source knows the mint.
const DerivedDecimals = 9

// Source resolves a batch of mints against one upstream. It returns entries
// only for the mints it could resolve; missing keys are not an error.
type Source interface {
	Name() string
	Resolve(ctx context.Context, mints []string) (map[string]*domain.TokenMeta, error)
}

// Options configures Resolver. Zero values select defaults.
type Options struct {
	// Store caches resolved metadata across runs. Required.
	Store storage.TokenMetaStore

	// Sources are tried in order for mints the cache misses. Optional.
	Sources []Source

	// Queue gates upstream calls. Defaults to a 1-worker, 1 rps queue.
	Queue *workqueue.Queue

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Resolver turns mints into TokenMeta, consulting the store cache, the
// built-in registry, then each upstream source in order.
type Resolver struct {
	store   storage.TokenMetaStore
	sources []Source
	queue   *workqueue.Queue
	logger  *log.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	if opts.Queue == nil {
		opts.Queue = workqueue.New(1, 1)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Resolver{
		store:   opts.Store,
		sources: opts.Sources,
		queue:   opts.Queue,
		logger:  opts.Logger,
	}
}

// Batch resolves every mint in mints. It never fails: each input mint gets an
// entry, falling back to a derived one when every source comes up empty.
// Resolved entries are written back to the store; derived entries are not, so
// a later run can still resolve them upstream.
func (r *Resolver) Batch(ctx context.Context, mints []string) map[string]*domain.TokenMeta {
	result := make(map[string]*domain.TokenMeta, len(mints))

	pending := dedupe(mints)
	if len(pending) == 0 {
		return result
	}

	pending = r.fromStore(ctx, pending, result)
	pending = r.fromRegistry(ctx, pending, result)

	for _, src := range r.sources {
		if len(pending) == 0 {
			break
		}
		pending = r.fromSource(ctx, src, pending, result)
	}

	for _, mint := range pending {
		result[mint] = derived(mint)
	}

	return result
}

// fromStore fills result with cache hits and returns the misses.
func (r *Resolver) fromStore(ctx context.Context, mints []string, result map[string]*domain.TokenMeta) []string {
	if r.store == nil {
		return mints
	}
	cached, err := r.store.GetByMints(ctx, mints)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Printf("metadata: cache read failed: %v", err)
		}
		return mints
	}
	var missing []string
	for _, mint := range mints {
		if meta, ok := cached[mint]; ok {
			result[mint] = meta
		} else {
			missing = append(missing, mint)
		}
	}
	return missing
}

// fromRegistry resolves well-known mints from the built-in table.
func (r *Resolver) fromRegistry(ctx context.Context, mints []string, result map[string]*domain.TokenMeta) []string {
	var missing []string
	for _, mint := range mints {
		meta, ok := lookupRegistry(mint)
		if !ok {
			missing = append(missing, mint)
			continue
		}
		result[mint] = meta
		r.persist(ctx, meta)
	}
	return missing
}

// fromSource asks one upstream for the pending mints through the queue.
// Upstream failure is logged and leaves all mints pending for the next source.
func (r *Resolver) fromSource(ctx context.Context, src Source, mints []string, result map[string]*domain.TokenMeta) []string {
	var resolved map[string]*domain.TokenMeta
	err := r.queue.Do(ctx, func(ctx context.Context) error {
		var srcErr error
		resolved, srcErr = src.Resolve(ctx, mints)
		return srcErr
	})
	if err != nil {
		r.logger.Printf("metadata: source %s failed for %d mints: %v", src.Name(), len(mints), err)
		return mints
	}

	var missing []string
	for _, mint := range mints {
		meta, ok := resolved[mint]
		if !ok || meta == nil {
			missing = append(missing, mint)
			continue
		}
		result[mint] = meta
		r.persist(ctx, meta)
	}
	return missing
}

// persist writes a resolved entry to the cache. Failures are logged only; the
// resolver contract does not let store trouble block event emission.
func (r *Resolver) persist(ctx context.Context, meta *domain.TokenMeta) {
	if r.store == nil {
		return
	}
	if meta.FetchedAt == 0 {
		meta.FetchedAt = time.Now().UnixMilli()
	}
	if err := r.store.Upsert(ctx, meta); err != nil {
		r.logger.Printf("metadata: cache write failed for %s: %v", meta.Mint, err)
	}
}

// derived builds the fallback entry for a mint no source knows.
func derived(mint string) *domain.TokenMeta {
	return &domain.TokenMeta{
		Mint:      mint,
		Symbol:    Short(mint),
		Decimals:  DerivedDecimals,
		Source:    domain.MetaSourceDerived,
		FetchedAt: time.Now().UnixMilli(),
	}
}

// Short abbreviates a mint for display: first and last four characters.
func Short(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:4] + ".." + mint[len(mint)-4:]
}

func dedupe(mints []string) []string {
	seen := make(map[string]struct{}, len(mints))
	out := make([]string, 0, len(mints))
	for _, mint := range mints {
		if mint == "" {
			continue
		}
		if _, ok := seen[mint]; ok {
			continue
		}
		seen[mint] = struct{}{}
		out = append(out, mint)
	}
	return out
}
