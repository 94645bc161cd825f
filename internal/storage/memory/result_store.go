package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExecutionResult // keyed by order_id
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		data: make(map[string]*domain.ExecutionResult),
	}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// Insert adds a result. Returns ErrDuplicateKey if order_id exists.
func (s *ResultStore) Insert(_ context.Context, r *domain.ExecutionResult) error {
	if r == nil || r.OrderID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.OrderID]; exists {
		return storage.ErrDuplicateKey
	}

	resultCopy := *r
	s.data[r.OrderID] = &resultCopy
	return nil
}

// GetByOrderID retrieves a result. Returns ErrNotFound if not exists.
func (s *ResultStore) GetByOrderID(_ context.Context, orderID string) (*domain.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[orderID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	resultCopy := *r
	return &resultCopy, nil
}

// Latest returns up to n results ordered by submission time, newest first.
func (s *ResultStore) Latest(_ context.Context, n int) ([]*domain.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := s.snapshotLocked()
	sort.Slice(results, func(i, j int) bool {
		return results[i].SubmittedAt.After(results[j].SubmittedAt)
	})

	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// GetByOutcome returns up to limit results with the given outcome, newest first.
func (s *ResultStore) GetByOutcome(_ context.Context, outcome domain.Outcome, limit int) ([]*domain.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*domain.ExecutionResult
	for _, r := range s.data {
		if r.Outcome == outcome {
			resultCopy := *r
			results = append(results, &resultCopy)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].SubmittedAt.After(results[j].SubmittedAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetByTimeRange returns results submitted within [start, end], oldest first.
func (s *ResultStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*domain.ExecutionResult
	for _, r := range s.data {
		if !r.SubmittedAt.Before(start) && !r.SubmittedAt.After(end) {
			resultCopy := *r
			results = append(results, &resultCopy)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].SubmittedAt.Before(results[j].SubmittedAt)
	})
	return results, nil
}

// Reconcile resolves a timeout result to its final outcome.
func (s *ResultStore) Reconcile(_ context.Context, orderID string, outcome domain.Outcome, confirmedAt time.Time, realized *uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data[orderID]
	if !exists {
		return storage.ErrNotFound
	}

	// Only timeout results can be reconciled, and only once.
	if r.Outcome != domain.OutcomeTimeout {
		return storage.ErrInvalidTransition
	}
	if outcome != domain.OutcomeSuccess && outcome != domain.OutcomeFailed {
		return storage.ErrInvalidInput
	}

	r.Outcome = outcome
	if outcome == domain.OutcomeSuccess {
		t := confirmedAt
		r.ConfirmedAt = &t
		if realized != nil {
			v := *realized
			r.RealizedOutputAmount = &v
		}
	}
	return nil
}

func (s *ResultStore) snapshotLocked() []*domain.ExecutionResult {
	results := make([]*domain.ExecutionResult, 0, len(s.data))
	for _, r := range s.data {
		resultCopy := *r
		results = append(results, &resultCopy)
	}
	return results
}
