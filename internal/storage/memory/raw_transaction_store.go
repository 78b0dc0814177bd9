package memory

import (
	"context"
	"sync"
	"time"

	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/storage"
)

// RawTransactionStore is an in-memory implementation of storage.RawTransactionStore.
type RawTransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RawTransaction // keyed by signature
}

// NewRawTransactionStore creates a new in-memory raw transaction store.
func NewRawTransactionStore() *RawTransactionStore {
	return &RawTransactionStore{
		data: make(map[string]*domain.RawTransaction),
	}
}

// Compile-time interface check.
var _ storage.RawTransactionStore = (*RawTransactionStore)(nil)

// Upsert inserts or replaces a transaction by signature.
func (s *RawTransactionStore) Upsert(_ context.Context, tx *domain.RawTransaction) error {
	if tx == nil || tx.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(tx)
	return nil
}

// UpsertBulk inserts or replaces multiple transactions atomically.
func (s *RawTransactionStore) UpsertBulk(_ context.Context, txs []*domain.RawTransaction) error {
	for _, tx := range txs {
		if tx == nil || tx.Signature == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.upsertLocked(tx)
	}
	return nil
}

func (s *RawTransactionStore) upsertLocked(tx *domain.RawTransaction) {
	now := time.Now().UnixMilli()
	cp := *tx
	cp.UpdatedAt = now
	if existing, ok := s.data[tx.Signature]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt == 0 {
		cp.CreatedAt = now
	}
	s.data[tx.Signature] = &cp
}

// GetBySignature retrieves a transaction. Returns ErrNotFound if absent.
func (s *RawTransactionStore) GetBySignature(_ context.Context, signature string) (*domain.RawTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.data[signature]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

// ExistsBySignature reports whether a transaction is stored.
func (s *RawTransactionStore) ExistsBySignature(_ context.Context, signature string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[signature]
	return ok, nil
}

// SignaturesBySlotRange returns stored signatures with slot in [fromSlot, toSlot].
func (s *RawTransactionStore) SignaturesBySlotRange(_ context.Context, fromSlot, toSlot int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sigs []string
	for _, tx := range s.data {
		if tx.Slot >= fromSlot && tx.Slot <= toSlot {
			sigs = append(sigs, tx.Signature)
		}
	}
	return sigs, nil
}

// Count returns the number of stored transactions.
func (s *RawTransactionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
