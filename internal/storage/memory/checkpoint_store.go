package memory

import (
	"context"
	"sync"

	"solana-copy-trader/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string]checkpoint // keyed by source account
}

type checkpoint struct {
	signature string
	slot      int64
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		data: make(map[string]checkpoint),
	}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Save upserts the latest acknowledged signature/slot for an account.
func (s *CheckpointStore) Save(_ context.Context, sourceAccount, signature string, slot int64) error {
	if sourceAccount == "" || signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[sourceAccount] = checkpoint{signature: signature, slot: slot}
	return nil
}

// Load returns the saved checkpoint. Returns ErrNotFound if none exists.
func (s *CheckpointStore) Load(_ context.Context, sourceAccount string) (string, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, exists := s.data[sourceAccount]
	if !exists {
		return "", 0, storage.ErrNotFound
	}
	return cp.signature, cp.slot, nil
}
