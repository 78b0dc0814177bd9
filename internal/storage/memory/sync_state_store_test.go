package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

func TestSyncStateStore_UpsertAndGet(t *testing.T) {
	store := NewSyncStateStore()
	ctx := context.Background()

	before := "cursor-sig"
	slot := int64(5000)
	state := &domain.SyncState{
		Wallet:       "w1",
		LastBefore:   &before,
		VerifiedSlot: &slot,
	}
	if err := store.Upsert(ctx, state); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.LastBefore == nil || *got.LastBefore != before {
		t.Errorf("LastBefore mismatch: got %v", got.LastBefore)
	}
	if got.VerifiedSlot == nil || *got.VerifiedSlot != slot {
		t.Errorf("VerifiedSlot mismatch: got %v", got.VerifiedSlot)
	}
	if got.CreatedAt == 0 || got.UpdatedAt == 0 {
		t.Errorf("timestamps not set: created=%d updated=%d", got.CreatedAt, got.UpdatedAt)
	}
}

func TestSyncStateStore_UpsertPreservesCreatedAt(t *testing.T) {
	store := NewSyncStateStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.SyncState{Wallet: "w1"}); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	first, _ := store.Get(ctx, "w1")

	before := "sig99"
	if err := store.Upsert(ctx, &domain.SyncState{Wallet: "w1", LastBefore: &before}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CreatedAt != first.CreatedAt {
		t.Errorf("CreatedAt changed on upsert: got %d, want %d", got.CreatedAt, first.CreatedAt)
	}
	if got.LastBefore == nil || *got.LastBefore != before {
		t.Errorf("LastBefore not replaced: got %v", got.LastBefore)
	}
}

func TestSyncStateStore_ClearCursor(t *testing.T) {
	store := NewSyncStateStore()
	ctx := context.Background()

	before := "sig1"
	if err := store.Upsert(ctx, &domain.SyncState{Wallet: "w1", LastBefore: &before}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, &domain.SyncState{Wallet: "w1", LastBefore: nil}); err != nil {
		t.Fatalf("clearing Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.LastBefore != nil {
		t.Errorf("LastBefore not cleared: got %v", *got.LastBefore)
	}
}

func TestSyncStateStore_NotFound(t *testing.T) {
	store := NewSyncStateStore()

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncStateStore_InvalidInput(t *testing.T) {
	store := NewSyncStateStore()

	if err := store.Upsert(context.Background(), &domain.SyncState{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
