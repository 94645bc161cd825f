package redis

import (
	"context"
	"fmt"
	"time"
)

const sigKeyPrefix = "copytrader:sig:"

// SignatureCache marks transaction signatures as seen across process
// restarts. Entries expire so the keyspace stays bounded; the in-process LRU
// remains the first line of dedup, this is the durable second.
type SignatureCache struct {
	client *Client
	ttl    time.Duration
}

// NewSignatureCache creates a cache with the given entry TTL.
func NewSignatureCache(client *Client, ttl time.Duration) *SignatureCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignatureCache{client: client, ttl: ttl}
}

// Seen atomically marks a signature and reports whether it was already
// marked.
func (c *SignatureCache) Seen(ctx context.Context, signature string) (bool, error) {
	set, err := c.client.rdb.SetNX(ctx, sigKeyPrefix+signature, 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: mark signature: %w", err)
	}
	return !set, nil
}

// Contains reports whether a signature is marked, without marking it.
func (c *SignatureCache) Contains(ctx context.Context, signature string) (bool, error) {
	n, err := c.client.rdb.Exists(ctx, sigKeyPrefix+signature).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check signature: %w", err)
	}
	return n > 0, nil
}
