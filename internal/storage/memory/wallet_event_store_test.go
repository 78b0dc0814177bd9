package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

func TestWalletEventStore_Ordering(t *testing.T) {
	store := NewWalletEventStore()
	ctx := context.Background()

	events := []*domain.WalletEvent{
		{Wallet: "w1", Signature: "sigB", Index: 0, BlockTime: 2000, Slot: 200, Side: domain.SideSell},
		{Wallet: "w1", Signature: "sigA", Index: 1, BlockTime: 1000, Slot: 100, Side: domain.SideSell},
		{Wallet: "w1", Signature: "sigA", Index: 0, BlockTime: 1000, Slot: 100, Side: domain.SideBuy},
		{Wallet: "w1", Signature: "sigC", Index: 0, BlockTime: 1000, Slot: 100, Side: domain.SideTransfer},
	}
	if err := store.UpsertBulk(ctx, events); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	got, err := store.GetByWallet(ctx, "w1")
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d events, want 4", len(got))
	}

	wantOrder := []struct {
		sig   string
		index int
	}{
		{"sigA", 0},
		{"sigA", 1},
		{"sigC", 0},
		{"sigB", 0},
	}
	for i, want := range wantOrder {
		if got[i].Signature != want.sig || got[i].Index != want.index {
			t.Errorf("position %d: got (%s,%d), want (%s,%d)",
				i, got[i].Signature, got[i].Index, want.sig, want.index)
		}
	}
}

func TestWalletEventStore_UpsertIdempotent(t *testing.T) {
	store := NewWalletEventStore()
	ctx := context.Background()

	e := &domain.WalletEvent{Wallet: "w1", Signature: "sig1", Index: 0, Slot: 100, Side: domain.SideBuy}
	if err := store.Upsert(ctx, e); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	e.Side = domain.SideSell
	if err := store.Upsert(ctx, e); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	if store.Count() != 1 {
		t.Errorf("Count: got %d, want 1", store.Count())
	}
	got, err := store.GetByWallet(ctx, "w1")
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if got[0].Side != domain.SideSell {
		t.Errorf("Side not replaced: got %s", got[0].Side)
	}
}

func TestWalletEventStore_WalletIsolation(t *testing.T) {
	store := NewWalletEventStore()
	ctx := context.Background()

	events := []*domain.WalletEvent{
		{Wallet: "w1", Signature: "sig1", Index: 0, Slot: 100},
		{Wallet: "w2", Signature: "sig1", Index: 0, Slot: 100},
	}
	if err := store.UpsertBulk(ctx, events); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	got, err := store.GetByWallet(ctx, "w1")
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events for w1, want 1", len(got))
	}
	if got[0].Wallet != "w1" {
		t.Errorf("wrong wallet: %s", got[0].Wallet)
	}
}

func TestWalletEventStore_CountBySlotRange(t *testing.T) {
	store := NewWalletEventStore()
	ctx := context.Background()

	events := []*domain.WalletEvent{
		{Wallet: "w1", Signature: "sig1", Index: 0, Slot: 100},
		{Wallet: "w1", Signature: "sig2", Index: 0, Slot: 150},
		{Wallet: "w1", Signature: "sig2", Index: 1, Slot: 150},
		{Wallet: "w1", Signature: "sig3", Index: 0, Slot: 300},
		{Wallet: "w2", Signature: "sig4", Index: 0, Slot: 150},
	}
	if err := store.UpsertBulk(ctx, events); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	count, err := store.CountBySlotRange(ctx, "w1", 100, 200)
	if err != nil {
		t.Fatalf("CountBySlotRange failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count: got %d, want 3", count)
	}
}

func TestWalletEventStore_InvalidInput(t *testing.T) {
	store := NewWalletEventStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.WalletEvent{Signature: "sig1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing wallet, got %v", err)
	}
	if err := store.UpsertBulk(ctx, []*domain.WalletEvent{
		{Wallet: "w1", Signature: "sig1"},
		{Wallet: "w1"},
	}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing signature, got %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("failed bulk upsert must not persist anything: count %d", store.Count())
	}
}
