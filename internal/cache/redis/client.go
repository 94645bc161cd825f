// Package redis provides optional Redis-backed caches: cross-restart
// signature dedup and a checkpoint mirror. The pipeline runs without Redis;
// these caches shorten recovery when it is available.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps a go-redis client with connectivity helpers.
type Client struct {
	rdb *redis.Client
}

// New creates a client and verifies connectivity.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
