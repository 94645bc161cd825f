package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// IntentStore is an in-memory implementation of storage.IntentStore.
type IntentStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.TradeIntent // keyed by raw signature
	order []string                       // insertion order, oldest first
}

// NewIntentStore creates a new in-memory intent store.
func NewIntentStore() *IntentStore {
	return &IntentStore{
		data: make(map[string]*domain.TradeIntent),
	}
}

// Compile-time interface check.
var _ storage.IntentStore = (*IntentStore)(nil)

// Insert adds a new intent. Returns ErrDuplicateKey if the signature exists.
func (s *IntentStore) Insert(_ context.Context, i *domain.TradeIntent) error {
	if i == nil || i.RawSignature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[i.RawSignature]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	intentCopy := *i
	s.data[i.RawSignature] = &intentCopy
	s.order = append(s.order, i.RawSignature)
	return nil
}

// GetBySignature retrieves an intent. Returns ErrNotFound if not exists.
func (s *IntentStore) GetBySignature(_ context.Context, signature string) (*domain.TradeIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, exists := s.data[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}

	intentCopy := *i
	return &intentCopy, nil
}

// LatestSignatures returns up to n most recently observed signatures, newest first.
func (s *IntentStore) LatestSignatures(_ context.Context, n int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.order) == 0 {
		return nil, nil
	}

	// Order by observation time, newest first; insertion order breaks ties.
	sigs := make([]string, len(s.order))
	copy(sigs, s.order)
	sort.SliceStable(sigs, func(a, b int) bool {
		return s.data[sigs[a]].ObservedAt.After(s.data[sigs[b]].ObservedAt)
	})

	if len(sigs) > n {
		sigs = sigs[:n]
	}
	return sigs, nil
}
