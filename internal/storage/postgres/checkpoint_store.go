package postgres

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Save upserts the latest acknowledged signature/slot for an account.
func (s *CheckpointStore) Save(ctx context.Context, sourceAccount, signature string, slot int64) error {
	if sourceAccount == "" || signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO feed_checkpoints (source_account, signature, slot, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (source_account)
		DO UPDATE SET signature = EXCLUDED.signature,
		              slot = EXCLUDED.slot,
		              updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, sourceAccount, signature, slot); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load returns the saved checkpoint. Returns ErrNotFound if none exists.
func (s *CheckpointStore) Load(ctx context.Context, sourceAccount string) (string, int64, error) {
	query := `SELECT signature, slot FROM feed_checkpoints WHERE source_account = $1`

	var (
		signature string
		slot      int64
	)
	err := s.pool.QueryRow(ctx, query, sourceAccount).Scan(&signature, &slot)
	if err != nil {
		if isNotFoundError(err) {
			return "", 0, storage.ErrNotFound
		}
		return "", 0, fmt.Errorf("load checkpoint: %w", err)
	}
	return signature, slot, nil
}
