package sizing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// BalanceTracker maintains a cached lamport balance for the follower wallet.
// Sizing reads one immutable snapshot per decision; submissions debit the
// cache optimistically so two orders sized back to back cannot both spend
// the same lamports before the chain reflects the first.
type BalanceTracker struct {
	rpc    solana.RPCClient
	pubkey string
	maxAge time.Duration

	mu       sync.Mutex
	snapshot domain.BalanceSnapshot
	// reserved is the sum of optimistic debits not yet visible on-chain.
	reserved uint64
}

// NewBalanceTracker creates a tracker for the given wallet address.
func NewBalanceTracker(rpc solana.RPCClient, pubkey string, maxAge time.Duration) *BalanceTracker {
	return &BalanceTracker{rpc: rpc, pubkey: pubkey, maxAge: maxAge}
}

// Snapshot returns the current balance view, refreshing from the RPC when
// the cached snapshot is older than the configured maximum age. On refresh
// failure the stale snapshot is returned along with the error so the caller
// can decide whether staleness is acceptable.
func (t *BalanceTracker) Snapshot(ctx context.Context) (domain.BalanceSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.snapshot.TakenAt.IsZero() && t.snapshot.Age(time.Now()) <= t.maxAge {
		return t.effective(), nil
	}

	lamports, err := t.rpc.GetBalance(ctx, t.pubkey)
	if err != nil {
		return t.effective(), fmt.Errorf("refresh balance: %w", err)
	}

	t.snapshot = domain.BalanceSnapshot{Lamports: lamports, TakenAt: time.Now()}
	// On-chain balance now includes settled debits; start reservations over.
	t.reserved = 0
	return t.effective(), nil
}

// effective returns the snapshot minus outstanding reservations.
// Caller must hold t.mu.
func (t *BalanceTracker) effective() domain.BalanceSnapshot {
	s := t.snapshot
	if t.reserved >= s.Lamports {
		s.Lamports = 0
	} else {
		s.Lamports -= t.reserved
	}
	return s
}

// TokenBalance reads the wallet's base-unit balance for a mint straight from
// the RPC. Token balances are not cached: each sell decision sees the
// on-chain holding at decision time.
func (t *BalanceTracker) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	return t.rpc.GetTokenBalance(ctx, t.pubkey, mint)
}

// Reserve debits the cached balance for a submitted order.
func (t *BalanceTracker) Reserve(lamports uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserved += lamports
}

// Release returns a reservation after an order fails before spending funds.
func (t *BalanceTracker) Release(lamports uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if lamports > t.reserved {
		t.reserved = 0
		return
	}
	t.reserved -= lamports
}

// Invalidate forces the next Snapshot call to refresh from the RPC.
func (t *BalanceTracker) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot = domain.BalanceSnapshot{}
}
