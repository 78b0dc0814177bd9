package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/helius"
	"solana-wallet-indexer/internal/storage/memory"
	"solana-wallet-indexer/internal/workqueue"
)

type fakeSource struct {
	pages map[string][]*helius.Transaction
	err   error
	calls int
}

func (f *fakeSource) Transactions(_ context.Context, _ string, before string, _ int) ([]*helius.Transaction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[before], nil
}

type passthroughNormalizer struct{}

func (passthroughNormalizer) NormalizeAll(_ context.Context, wallet string, txs []*helius.Transaction) []domain.WalletEvent {
	var events []domain.WalletEvent
	for _, tx := range txs {
		events = append(events, domain.WalletEvent{
			Wallet:    wallet,
			Signature: tx.Signature,
			Index:     0,
			Slot:      tx.Slot,
		})
	}
	return events
}

type fixture struct {
	auditor *Auditor
	raws    *memory.RawTransactionStore
	events  *memory.WalletEventStore
	sync    *memory.SyncStateStore
	audits  *memory.ReconcileAuditStore
}

func newFixture(source *fakeSource) *fixture {
	f := &fixture{
		raws:   memory.NewRawTransactionStore(),
		events: memory.NewWalletEventStore(),
		sync:   memory.NewSyncStateStore(),
		audits: memory.NewReconcileAuditStore(),
	}
	f.auditor = New(Options{
		Source:     source,
		Normalizer: passthroughNormalizer{},
		RawStore:   f.raws,
		EventStore: f.events,
		SyncStore:  f.sync,
		AuditStore: f.audits,
		Queue:      workqueue.New(2, 1000),
		Retry:      workqueue.RetryConfig{MaxAttempts: 1},
		ChunkPause: time.Millisecond,
		Logger:     log.New(io.Discard, "", 0),
	})
	return f
}

func tx(sig string, slot int64) *helius.Transaction {
	ts := slot * 10
	return &helius.Transaction{
		Signature: sig,
		Slot:      slot,
		Timestamp: &ts,
		Raw:       []byte(fmt.Sprintf(`{"signature":%q}`, sig)),
	}
}

func TestReconcileSlotRange_RepairsMissing(t *testing.T) {
	source := &fakeSource{pages: map[string][]*helius.Transaction{
		"": {tx("sig3", 250), tx("sig2", 200), tx("sig1", 150), tx("sig0", 50)},
	}}
	f := newFixture(source)
	ctx := context.Background()

	require.NoError(t, f.raws.UpsertBulk(ctx, []*domain.RawTransaction{
		{Signature: "sig1", Slot: 150},
		{Signature: "sig2", Slot: 200},
	}))

	result, err := f.auditor.ReconcileSlotRange(ctx, "w1", 100, 300)
	require.NoError(t, err)

	assert.Equal(t, 3, result.ProviderCount)
	assert.Equal(t, 1, result.Repaired)
	assert.Equal(t, 3, result.StoreCount)
	assert.True(t, result.OK)
	assert.NotEmpty(t, result.SignatureSetHash)

	exists, err := f.raws.ExistsBySignature(ctx, "sig3")
	require.NoError(t, err)
	assert.True(t, exists, "missing signature re-ingested")

	exists, err = f.raws.ExistsBySignature(ctx, "sig0")
	require.NoError(t, err)
	assert.False(t, exists, "out-of-window signature not ingested")

	// The repaired transaction got its events too.
	events, err := f.events.GetByWallet(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sig3", events[0].Signature)

	audits, err := f.audits.GetByWallet(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].OK)
	assert.Equal(t, 3, audits[0].CountRaw)
	assert.Equal(t, result.SignatureSetHash, audits[0].SignatureSetHash)
}

func TestReconcileSlotRange_AlreadyConsistent(t *testing.T) {
	source := &fakeSource{pages: map[string][]*helius.Transaction{
		"": {tx("sig2", 200), tx("sig1", 150), tx("sig0", 50)},
	}}
	f := newFixture(source)
	ctx := context.Background()

	require.NoError(t, f.raws.UpsertBulk(ctx, []*domain.RawTransaction{
		{Signature: "sig1", Slot: 150},
		{Signature: "sig2", Slot: 200},
	}))

	result, err := f.auditor.ReconcileSlotRange(ctx, "w1", 100, 300)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Repaired)
	assert.True(t, result.OK)
}

func TestReconcileSlotRange_FetchFailureAuditsNotOK(t *testing.T) {
	source := &fakeSource{err: errors.New("provider down")}
	f := newFixture(source)
	ctx := context.Background()

	_, err := f.auditor.ReconcileSlotRange(ctx, "w1", 100, 300)
	require.Error(t, err)

	audits, auditErr := f.audits.GetByWallet(ctx, "w1")
	require.NoError(t, auditErr)
	require.Len(t, audits, 1)
	assert.False(t, audits[0].OK)
}

func TestReconcileRecentSlots_Chunks(t *testing.T) {
	source := &fakeSource{pages: map[string][]*helius.Transaction{}}
	f := newFixture(source)
	ctx := context.Background()

	slot := int64(1500)
	require.NoError(t, f.sync.Upsert(ctx, &domain.SyncState{Wallet: "w1", VerifiedSlot: &slot}))

	results, err := f.auditor.ReconcileRecentSlots(ctx, "w1", 1000)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, int64(500), results[0].FromSlot)
	assert.Equal(t, int64(1499), results[0].ToSlot)
	assert.Equal(t, int64(1500), results[1].FromSlot)
	assert.Equal(t, int64(1500), results[1].ToSlot)
	for _, r := range results {
		assert.True(t, r.OK, "empty ranges reconcile clean")
	}

	audits, err := f.audits.GetByWallet(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, audits, 2)
}

func TestReconcileRecentSlots_WindowClampedAtZero(t *testing.T) {
	source := &fakeSource{pages: map[string][]*helius.Transaction{}}
	f := newFixture(source)
	ctx := context.Background()

	slot := int64(300)
	require.NoError(t, f.sync.Upsert(ctx, &domain.SyncState{Wallet: "w1", VerifiedSlot: &slot}))

	results, err := f.auditor.ReconcileRecentSlots(ctx, "w1", 1000)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(0), results[0].FromSlot)
}

func TestReconcileRecentSlots_NoVerifiedSlot(t *testing.T) {
	f := newFixture(&fakeSource{})
	ctx := context.Background()

	require.NoError(t, f.sync.Upsert(ctx, &domain.SyncState{Wallet: "w1"}))

	_, err := f.auditor.ReconcileRecentSlots(ctx, "w1", 0)
	assert.ErrorIs(t, err, ErrNoVerifiedSlot)
}
