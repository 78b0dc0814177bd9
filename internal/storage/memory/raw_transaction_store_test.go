package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

func TestRawTransactionStore_UpsertAndGet(t *testing.T) {
	store := NewRawTransactionStore()
	ctx := context.Background()

	blockTime := int64(1704067200)
	tx := &domain.RawTransaction{
		Signature: "sig1",
		Slot:      100,
		BlockTime: &blockTime,
		Payload:   []byte(`{"signature":"sig1"}`),
	}

	if err := store.Upsert(ctx, tx); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetBySignature(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetBySignature failed: %v", err)
	}
	if got.Slot != 100 {
		t.Errorf("Slot mismatch: got %d, want 100", got.Slot)
	}
	if got.BlockTime == nil || *got.BlockTime != blockTime {
		t.Errorf("BlockTime mismatch: got %v", got.BlockTime)
	}
	if got.CreatedAt == 0 {
		t.Error("CreatedAt not set")
	}
}

func TestRawTransactionStore_UpsertIdempotent(t *testing.T) {
	store := NewRawTransactionStore()
	ctx := context.Background()

	tx := &domain.RawTransaction{Signature: "sig1", Slot: 100}
	if err := store.Upsert(ctx, tx); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	first, _ := store.GetBySignature(ctx, "sig1")

	tx.Slot = 101
	if err := store.Upsert(ctx, tx); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := store.GetBySignature(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetBySignature failed: %v", err)
	}
	if got.Slot != 101 {
		t.Errorf("Slot not replaced: got %d, want 101", got.Slot)
	}
	if got.CreatedAt != first.CreatedAt {
		t.Errorf("CreatedAt changed on upsert: got %d, want %d", got.CreatedAt, first.CreatedAt)
	}
	if store.Count() != 1 {
		t.Errorf("Count: got %d, want 1", store.Count())
	}
}

func TestRawTransactionStore_NotFound(t *testing.T) {
	store := NewRawTransactionStore()
	ctx := context.Background()

	_, err := store.GetBySignature(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	exists, err := store.ExistsBySignature(ctx, "missing")
	if err != nil {
		t.Fatalf("ExistsBySignature failed: %v", err)
	}
	if exists {
		t.Error("expected missing signature to not exist")
	}
}

func TestRawTransactionStore_SignaturesBySlotRange(t *testing.T) {
	store := NewRawTransactionStore()
	ctx := context.Background()

	txs := []*domain.RawTransaction{
		{Signature: "sig1", Slot: 100},
		{Signature: "sig2", Slot: 150},
		{Signature: "sig3", Slot: 200},
		{Signature: "sig4", Slot: 250},
	}
	if err := store.UpsertBulk(ctx, txs); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	sigs, err := store.SignaturesBySlotRange(ctx, 150, 200)
	if err != nil {
		t.Fatalf("SignaturesBySlotRange failed: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("got %d signatures, want 2: %v", len(sigs), sigs)
	}
	found := map[string]bool{}
	for _, sig := range sigs {
		found[sig] = true
	}
	if !found["sig2"] || !found["sig3"] {
		t.Errorf("wrong signatures in range: %v", sigs)
	}
}

func TestRawTransactionStore_InvalidInput(t *testing.T) {
	store := NewRawTransactionStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.RawTransaction{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
