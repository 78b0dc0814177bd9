package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

// WalletEventStore is an in-memory implementation of storage.WalletEventStore.
type WalletEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalletEvent // keyed by composite key
}

// NewWalletEventStore creates a new in-memory wallet event store.
func NewWalletEventStore() *WalletEventStore {
	return &WalletEventStore{
		data: make(map[string]*domain.WalletEvent),
	}
}

// Compile-time interface check.
var _ storage.WalletEventStore = (*WalletEventStore)(nil)

// eventKey generates a unique key for an event.
func eventKey(wallet, signature string, index int) string {
	return fmt.Sprintf("%s|%s|%d", wallet, signature, index)
}

// Upsert inserts or replaces a single event.
func (s *WalletEventStore) Upsert(_ context.Context, e *domain.WalletEvent) error {
	if e == nil || e.Wallet == "" || e.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(e)
	return nil
}

// UpsertBulk inserts or replaces multiple events atomically.
func (s *WalletEventStore) UpsertBulk(_ context.Context, events []*domain.WalletEvent) error {
	for _, e := range events {
		if e == nil || e.Wallet == "" || e.Signature == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.upsertLocked(e)
	}
	return nil
}

func (s *WalletEventStore) upsertLocked(e *domain.WalletEvent) {
	cp := *e
	if cp.CreatedAt == 0 {
		cp.CreatedAt = time.Now().UnixMilli()
	}
	s.data[eventKey(e.Wallet, e.Signature, e.Index)] = &cp
}

// GetByWallet retrieves all events for a wallet ordered by
// block_time ASC, signature ASC, index ASC.
func (s *WalletEventStore) GetByWallet(_ context.Context, wallet string) ([]*domain.WalletEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WalletEvent
	for _, e := range s.data {
		if e.Wallet == wallet {
			cp := *e
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockTime != result[j].BlockTime {
			return result[i].BlockTime < result[j].BlockTime
		}
		if result[i].Signature != result[j].Signature {
			return result[i].Signature < result[j].Signature
		}
		return result[i].Index < result[j].Index
	})

	return result, nil
}

// CountBySlotRange counts events for a wallet with slot in [fromSlot, toSlot].
func (s *WalletEventStore) CountBySlotRange(_ context.Context, wallet string, fromSlot, toSlot int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.data {
		if e.Wallet == wallet && e.Slot >= fromSlot && e.Slot <= toSlot {
			count++
		}
	}
	return count, nil
}

// Count returns the number of stored events.
func (s *WalletEventStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
