package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

func TestRawTransactionStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawTransactionStore(pool)

	tx := &domain.RawTransaction{
		Signature: "sig1",
		Slot:      1500,
		BlockTime: ptr(int64(1700000000)),
		Payload:   []byte(`{"signature":"sig1","type":"SWAP"}`),
	}

	err := store.Upsert(ctx, tx)
	require.NoError(t, err)

	retrieved, err := store.GetBySignature(ctx, "sig1")
	require.NoError(t, err)

	assert.Equal(t, "sig1", retrieved.Signature)
	assert.Equal(t, int64(1500), retrieved.Slot)
	require.NotNil(t, retrieved.BlockTime)
	assert.Equal(t, int64(1700000000), *retrieved.BlockTime)
	assert.JSONEq(t, `{"signature":"sig1","type":"SWAP"}`, string(retrieved.Payload))
	assert.NotZero(t, retrieved.CreatedAt)
	assert.NotZero(t, retrieved.UpdatedAt)
}

func TestRawTransactionStore_UpsertReplacesKeepingCreatedAt(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawTransactionStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.RawTransaction{
		Signature: "sig1",
		Slot:      100,
		Payload:   []byte(`{"v":1}`),
	}))

	first, err := store.GetBySignature(ctx, "sig1")
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, &domain.RawTransaction{
		Signature: "sig1",
		Slot:      200,
		Payload:   []byte(`{"v":2}`),
	}))

	second, err := store.GetBySignature(ctx, "sig1")
	require.NoError(t, err)

	assert.Equal(t, int64(200), second.Slot)
	assert.JSONEq(t, `{"v":2}`, string(second.Payload))
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestRawTransactionStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawTransactionStore(pool)

	_, err := store.GetBySignature(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRawTransactionStore_ExistsBySignature(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawTransactionStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.RawTransaction{
		Signature: "sig1",
		Slot:      100,
		Payload:   []byte(`{}`),
	}))

	exists, err := store.ExistsBySignature(ctx, "sig1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.ExistsBySignature(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRawTransactionStore_NullableBlockTime(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawTransactionStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.RawTransaction{
		Signature: "sig1",
		Slot:      100,
		BlockTime: nil,
		Payload:   []byte(`{}`),
	}))

	retrieved, err := store.GetBySignature(ctx, "sig1")
	require.NoError(t, err)
	assert.Nil(t, retrieved.BlockTime)
}

func TestRawTransactionStore_SignaturesBySlotRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawTransactionStore(pool)

	err := store.UpsertBulk(ctx, []*domain.RawTransaction{
		{Signature: "sigD", Slot: 300, Payload: []byte(`{}`)},
		{Signature: "sigB", Slot: 200, Payload: []byte(`{}`)},
		{Signature: "sigA", Slot: 200, Payload: []byte(`{}`)},
		{Signature: "sigC", Slot: 100, Payload: []byte(`{}`)},
		{Signature: "sigE", Slot: 400, Payload: []byte(`{}`)},
	})
	require.NoError(t, err)

	// Inclusive bounds, ordered by slot then signature.
	sigs, err := store.SignaturesBySlotRange(ctx, 100, 300)
	require.NoError(t, err)
	assert.Equal(t, []string{"sigC", "sigA", "sigB", "sigD"}, sigs)

	sigs, err = store.SignaturesBySlotRange(ctx, 500, 600)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}
