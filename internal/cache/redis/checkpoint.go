package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"solana-copy-trader/internal/storage"
)

const checkpointKeyPrefix = "copytrader:checkpoint:"

// CheckpointStore implements storage.CheckpointStore on Redis hashes. Useful
// when the primary store is in-memory but feed resume points should survive
// restarts.
type CheckpointStore struct {
	client *Client
}

// NewCheckpointStore creates a Redis-backed checkpoint store.
func NewCheckpointStore(client *Client) *CheckpointStore {
	return &CheckpointStore{client: client}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Save upserts the latest acknowledged signature/slot for an account.
func (s *CheckpointStore) Save(ctx context.Context, sourceAccount, signature string, slot int64) error {
	if sourceAccount == "" || signature == "" {
		return storage.ErrInvalidInput
	}
	err := s.client.rdb.HSet(ctx, checkpointKeyPrefix+sourceAccount,
		"signature", signature,
		"slot", strconv.FormatInt(slot, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: save checkpoint: %w", err)
	}
	return nil
}

// Load returns the saved checkpoint. Returns ErrNotFound if none exists.
func (s *CheckpointStore) Load(ctx context.Context, sourceAccount string) (string, int64, error) {
	fields, err := s.client.rdb.HGetAll(ctx, checkpointKeyPrefix+sourceAccount).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return "", 0, fmt.Errorf("redis: load checkpoint: %w", err)
	}
	sig, ok := fields["signature"]
	if !ok || sig == "" {
		return "", 0, storage.ErrNotFound
	}
	slot, err := strconv.ParseInt(fields["slot"], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("redis: parse checkpoint slot %q: %w", fields["slot"], err)
	}
	return sig, slot, nil
}
