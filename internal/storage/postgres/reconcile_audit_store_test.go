package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-indexer/internal/domain"
)

func TestReconcileAuditStore_AppendAssignsID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReconcileAuditStore(pool)

	audit := &domain.ReconcileAudit{
		Wallet:           "w1",
		FromSlot:         100,
		ToSlot:           200,
		CountRaw:         3,
		CountWalletTx:    5,
		SignatureSetHash: "abc123",
		OK:               true,
		CreatedAt:        1700000000000,
	}

	err := store.Append(ctx, audit)
	require.NoError(t, err)
	assert.NotZero(t, audit.ID)

	second := &domain.ReconcileAudit{
		Wallet:           "w1",
		FromSlot:         200,
		ToSlot:           300,
		SignatureSetHash: "def456",
		OK:               false,
		CreatedAt:        1700000001000,
	}
	require.NoError(t, store.Append(ctx, second))
	assert.Greater(t, second.ID, audit.ID)
}

func TestReconcileAuditStore_GetByWalletOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReconcileAuditStore(pool)

	require.NoError(t, store.Append(ctx, &domain.ReconcileAudit{
		Wallet: "w1", FromSlot: 200, ToSlot: 300,
		SignatureSetHash: "h2", OK: true, CreatedAt: 1700000002000,
	}))
	require.NoError(t, store.Append(ctx, &domain.ReconcileAudit{
		Wallet: "w1", FromSlot: 100, ToSlot: 200,
		SignatureSetHash: "h1", OK: true, CreatedAt: 1700000001000,
	}))

	audits, err := store.GetByWallet(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, audits, 2)

	// Ordered by created_at, not insertion order.
	assert.Equal(t, "h1", audits[0].SignatureSetHash)
	assert.Equal(t, "h2", audits[1].SignatureSetHash)
	assert.Equal(t, int64(100), audits[0].FromSlot)
	assert.Equal(t, int64(200), audits[0].ToSlot)
}

func TestReconcileAuditStore_AppendOnly(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReconcileAuditStore(pool)

	audit := &domain.ReconcileAudit{
		Wallet: "w1", FromSlot: 100, ToSlot: 200,
		SignatureSetHash: "h1", OK: true, CreatedAt: 1700000000000,
	}
	require.NoError(t, store.Append(ctx, audit))

	// A second run over the same range produces a new row, never a replace.
	repeat := &domain.ReconcileAudit{
		Wallet: "w1", FromSlot: 100, ToSlot: 200,
		SignatureSetHash: "h1", OK: true, CreatedAt: 1700000001000,
	}
	require.NoError(t, store.Append(ctx, repeat))

	audits, err := store.GetByWallet(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, audits, 2)
}

func TestReconcileAuditStore_WalletIsolation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReconcileAuditStore(pool)

	require.NoError(t, store.Append(ctx, &domain.ReconcileAudit{
		Wallet: "w1", FromSlot: 100, ToSlot: 200,
		SignatureSetHash: "h1", OK: true, CreatedAt: 1700000000000,
	}))

	audits, err := store.GetByWallet(ctx, "w2")
	require.NoError(t, err)
	assert.Empty(t, audits)
}

func TestReconcileAuditStore_CreatedAtDefaulted(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReconcileAuditStore(pool)

	audit := &domain.ReconcileAudit{
		Wallet: "w1", FromSlot: 100, ToSlot: 200,
		SignatureSetHash: "h1", OK: false,
	}
	require.NoError(t, store.Append(ctx, audit))
	assert.NotZero(t, audit.CreatedAt)

	audits, err := store.GetByWallet(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, audit.CreatedAt, audits[0].CreatedAt)
	assert.False(t, audits[0].OK)
}
