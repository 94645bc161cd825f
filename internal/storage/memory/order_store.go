package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.TradeOrder // keyed by order_id
	byIntent map[string][]string           // intent signature -> order IDs
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		data:     make(map[string]*domain.TradeOrder),
		byIntent: make(map[string][]string),
	}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

// Insert adds a new order. Returns ErrDuplicateKey if order_id exists.
func (s *OrderStore) Insert(_ context.Context, o *domain.TradeOrder) error {
	if o == nil || o.OrderID == "" || o.IntentSignature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.OrderID]; exists {
		return storage.ErrDuplicateKey
	}

	orderCopy := *o
	s.data[o.OrderID] = &orderCopy
	s.byIntent[o.IntentSignature] = append(s.byIntent[o.IntentSignature], o.OrderID)
	return nil
}

// GetByID retrieves an order. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(_ context.Context, orderID string) (*domain.TradeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[orderID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	orderCopy := *o
	return &orderCopy, nil
}

// GetByIntent retrieves all orders for an intent signature, by generation ASC.
func (s *OrderStore) GetByIntent(_ context.Context, signature string) ([]*domain.TradeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byIntent[signature]
	orders := make([]*domain.TradeOrder, 0, len(ids))
	for _, id := range ids {
		orderCopy := *s.data[id]
		orders = append(orders, &orderCopy)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Generation < orders[j].Generation
	})
	return orders, nil
}

// UpdateStatus advances order status from -> to under the transition rules.
func (s *OrderStore) UpdateStatus(_ context.Context, orderID string, from, to domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.data[orderID]
	if !exists {
		return storage.ErrNotFound
	}

	if o.Status != from || !domain.CanTransition(from, to) {
		return storage.ErrInvalidTransition
	}

	o.Status = to
	return nil
}
