// Package feed delivers source-account transaction updates to the pipeline.
// The primary path is a WebSocket logs subscription; when the socket stays
// down past a failure threshold the client falls back to polling signatures
// over HTTP until the stream recovers. Both paths emit the same RawUpdate
// shape, so downstream stages cannot tell which path produced an update.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
)

const pollBatchLimit = 100

// Overflow selects what happens when the update queue is full.
type Overflow string

// Overflow policies.
const (
	// OverflowDropOldest evicts the oldest queued update to admit the newest.
	OverflowDropOldest Overflow = "drop_oldest"
	// OverflowBlock applies backpressure to the feed loop instead.
	OverflowBlock Overflow = "block"
)

// Options configures a feed Client.
type Options struct {
	SourceAccount string
	// QueueSize bounds the update channel.
	QueueSize int
	// Policy when the queue is full. Defaults to OverflowDropOldest.
	Overflow Overflow
	// PollInterval is the cadence of the HTTP fallback.
	PollInterval time.Duration
	// FallbackAfterFailures is how many consecutive reconnect failures switch
	// the feed to polling.
	FallbackAfterFailures int
	Logger                *log.Logger
}

// Client is the feed stage. Create with New, consume Updates, and call Ack
// after an update has been durably processed.
type Client struct {
	ws          solana.WSClient
	rpc         solana.RPCClient
	checkpoints storage.CheckpointStore

	source        string
	pollInterval  time.Duration
	fallbackAfter int
	overflow      Overflow
	logger        *log.Logger

	out    chan *domain.RawUpdate
	status chan domain.FeedStatus

	mu         sync.Mutex
	cursor     string
	cursorSlot int64
	lastStatus domain.FeedStatus
	dropped    uint64
}

// New creates a feed client.
func New(ws solana.WSClient, rpc solana.RPCClient, checkpoints storage.CheckpointStore, opts Options) *Client {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.FallbackAfterFailures <= 0 {
		opts.FallbackAfterFailures = 3
	}
	if opts.Overflow == "" {
		opts.Overflow = OverflowDropOldest
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Client{
		ws:            ws,
		rpc:           rpc,
		checkpoints:   checkpoints,
		source:        opts.SourceAccount,
		pollInterval:  opts.PollInterval,
		fallbackAfter: opts.FallbackAfterFailures,
		overflow:      opts.Overflow,
		logger:        opts.Logger,
		out:           make(chan *domain.RawUpdate, opts.QueueSize),
		status:        make(chan domain.FeedStatus, 16),
	}
}

// Updates returns the bounded update channel.
func (c *Client) Updates() <-chan *domain.RawUpdate { return c.out }

// Status delivers feed status changes. Buffered; never blocks the feed.
func (c *Client) Status() <-chan domain.FeedStatus { return c.status }

// Dropped returns how many updates were discarded due to backpressure.
func (c *Client) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Ack records a durably processed update as the resume point for restarts.
func (c *Client) Ack(ctx context.Context, signature string, slot int64) error {
	if err := c.checkpoints.Save(ctx, c.source, signature, slot); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Run subscribes and pumps updates until the context is canceled.
func (c *Client) Run(ctx context.Context) error {
	if err := c.loadCheckpoint(ctx); err != nil {
		return err
	}

	notifications, err := c.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{c.source}})
	if err != nil {
		return fmt.Errorf("subscribe logs for %s: %w", c.source, err)
	}
	c.setStatus(domain.FeedStreaming)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	polling := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			c.enqueue(ctx, &domain.RawUpdate{
				Signature:  n.Signature,
				Slot:       n.Slot,
				Logs:       n.Logs,
				Err:        n.Err,
				ReceivedAt: time.Now().UnixNano(),
			})

		case st := <-c.ws.States():
			switch {
			case st.Connected:
				if polling {
					polling = false
					c.logger.Printf("feed: stream recovered, leaving polling fallback")
				}
				c.setStatus(domain.FeedStreaming)
			case st.ConsecutiveFailures >= c.fallbackAfter:
				if !polling {
					polling = true
					c.logger.Printf("feed: %d consecutive reconnect failures, polling every %v",
						st.ConsecutiveFailures, c.pollInterval)
				}
				c.setStatus(domain.FeedPolling)
			default:
				if !polling {
					c.setStatus(domain.FeedDisconnected)
				}
			}

		case <-ticker.C:
			if !polling {
				continue
			}
			if err := c.pollOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Printf("feed: poll failed: %v", err)
			}
		}
	}
}

func (c *Client) loadCheckpoint(ctx context.Context) error {
	sig, slot, err := c.checkpoints.Load(ctx, c.source)
	switch {
	case err == nil:
		c.mu.Lock()
		c.cursor, c.cursorSlot = sig, slot
		c.mu.Unlock()
		c.logger.Printf("feed: resuming %s after %s (slot %d)", c.source, sig, slot)
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("load checkpoint for %s: %w", c.source, err)
	}
}

// pollOnce fetches signatures newer than the cursor and emits them oldest
// first. Updates already seen on the streaming path are filtered downstream
// by signature dedup.
func (c *Client) pollOnce(ctx context.Context) error {
	c.mu.Lock()
	cursor := c.cursor
	c.mu.Unlock()

	opts := &solana.SignaturesOpts{Limit: pollBatchLimit}
	if cursor != "" {
		opts.Until = cursor
	}
	sigs, err := c.rpc.GetSignaturesForAddress(ctx, c.source, opts)
	if err != nil {
		return fmt.Errorf("get signatures: %w", err)
	}
	if len(sigs) == 0 {
		return nil
	}

	// Newest first from the RPC; replay oldest first.
	for i := len(sigs) - 1; i >= 0; i-- {
		info := sigs[i]
		tx, err := c.rpc.GetTransaction(ctx, info.Signature)
		if err != nil {
			return fmt.Errorf("get transaction %s: %w", info.Signature, err)
		}

		update := &domain.RawUpdate{
			Signature:  info.Signature,
			Slot:       info.Slot,
			Err:        info.Err,
			ReceivedAt: time.Now().UnixNano(),
		}
		if tx != nil && tx.Meta != nil {
			update.Logs = tx.Meta.LogMessages
			if update.Err == nil {
				update.Err = tx.Meta.Err
			}
		}
		c.enqueue(ctx, update)
	}
	return nil
}

// enqueue delivers an update. When the queue is full the configured overflow
// policy decides: OverflowBlock applies backpressure to the feed loop,
// OverflowDropOldest evicts the oldest queued update. Dropping old in favor
// of new keeps the feed current under sustained backpressure; a stale copy
// trade is worse than a missed one.
func (c *Client) enqueue(ctx context.Context, u *domain.RawUpdate) {
	c.mu.Lock()
	if u.Signature != "" {
		c.cursor, c.cursorSlot = u.Signature, u.Slot
	}
	c.mu.Unlock()

	select {
	case c.out <- u:
		return
	default:
	}

	if c.overflow == OverflowBlock {
		select {
		case c.out <- u:
		case <-ctx.Done():
		}
		return
	}

	select {
	case old := <-c.out:
		c.mu.Lock()
		c.dropped++
		dropped := c.dropped
		c.mu.Unlock()
		c.logger.Printf("feed: queue full, dropped %s (%d total)", old.Signature, dropped)
	default:
	}

	select {
	case c.out <- u:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		c.logger.Printf("feed: queue full, dropped %s", u.Signature)
	}
}

func (c *Client) setStatus(s domain.FeedStatus) {
	c.mu.Lock()
	if c.lastStatus == s {
		c.mu.Unlock()
		return
	}
	c.lastStatus = s
	c.mu.Unlock()

	select {
	case c.status <- s:
	default:
	}
}
