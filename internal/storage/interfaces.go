package storage

import (
	"context"
	"time"

	"solana-copy-trader/internal/domain"
)

// IntentStore persists detected TradeIntents. Insert-only: an intent is
// immutable once written.
type IntentStore interface {
	// Insert adds a new intent. Returns ErrDuplicateKey if the signature exists.
	Insert(ctx context.Context, i *domain.TradeIntent) error

	// GetBySignature retrieves an intent. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.TradeIntent, error)

	// LatestSignatures returns up to n most recently observed signatures,
	// newest first. Used to seed the dedup set on startup.
	LatestSignatures(ctx context.Context, n int) ([]string, error)
}

// OrderStore persists TradeOrders. Inserts are append-only; the status
// column advances through guarded one-directional transitions.
type OrderStore interface {
	// Insert adds a new order in status CREATED. Returns ErrDuplicateKey if
	// order_id exists (same intent signature and generation).
	Insert(ctx context.Context, o *domain.TradeOrder) error

	// GetByID retrieves an order. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, orderID string) (*domain.TradeOrder, error)

	// GetByIntent retrieves all orders (generations) for an intent signature.
	GetByIntent(ctx context.Context, signature string) ([]*domain.TradeOrder, error)

	// UpdateStatus advances order status from -> to. Returns
	// ErrInvalidTransition if the edge is not allowed or the stored status
	// no longer equals from, ErrNotFound if the order does not exist.
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error
}

// ResultStore persists ExecutionResults. Insert-only except for
// reconciliation, which resolves a timeout outcome exactly once.
type ResultStore interface {
	// Insert adds a result. Returns ErrDuplicateKey if order_id exists.
	Insert(ctx context.Context, r *domain.ExecutionResult) error

	// GetByOrderID retrieves a result. Returns ErrNotFound if not exists.
	GetByOrderID(ctx context.Context, orderID string) (*domain.ExecutionResult, error)

	// Latest returns up to n results ordered by submission time, newest first.
	Latest(ctx context.Context, n int) ([]*domain.ExecutionResult, error)

	// GetByOutcome returns up to limit results with the given outcome,
	// newest first.
	GetByOutcome(ctx context.Context, outcome domain.Outcome, limit int) ([]*domain.ExecutionResult, error)

	// GetByTimeRange returns results submitted within [start, end], oldest first.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.ExecutionResult, error)

	// Reconcile resolves a timeout result to its final outcome. Returns
	// ErrInvalidTransition if the stored outcome is not timeout (so a
	// reconciled result can never be counted twice), ErrNotFound if no
	// result exists for the order.
	Reconcile(ctx context.Context, orderID string, outcome domain.Outcome, confirmedAt time.Time, realized *uint64) error
}

// CheckpointStore records the feed's high-watermark per source account so a
// restart resumes without double-processing.
type CheckpointStore interface {
	// Save upserts the latest acknowledged signature/slot for an account.
	Save(ctx context.Context, sourceAccount, signature string, slot int64) error

	// Load returns the saved checkpoint. Returns ErrNotFound if none exists.
	Load(ctx context.Context, sourceAccount string) (signature string, slot int64, err error)
}
