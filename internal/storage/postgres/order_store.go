package postgres

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// OrderStore implements storage.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

// Insert adds a new order. Returns ErrDuplicateKey if order_id exists.
func (s *OrderStore) Insert(ctx context.Context, o *domain.TradeOrder) error {
	if o == nil || o.OrderID == "" || o.IntentSignature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_orders (
			order_id, intent_signature, generation,
			sized_input_amount, max_slippage_bps, priority_fee_lamports,
			status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		o.OrderID, o.IntentSignature, o.Generation,
		int64(o.SizedInputAmount), o.MaxSlippageBps, int64(o.PriorityFeeLamports),
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(ctx context.Context, orderID string) (*domain.TradeOrder, error) {
	query := `
		SELECT order_id, intent_signature, generation,
		       sized_input_amount, max_slippage_bps, priority_fee_lamports,
		       status, created_at
		FROM trade_orders
		WHERE order_id = $1
	`

	o, err := scanOrder(s.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return o, nil
}

// GetByIntent retrieves all orders for an intent signature, by generation ASC.
func (s *OrderStore) GetByIntent(ctx context.Context, signature string) ([]*domain.TradeOrder, error) {
	query := `
		SELECT order_id, intent_signature, generation,
		       sized_input_amount, max_slippage_bps, priority_fee_lamports,
		       status, created_at
		FROM trade_orders
		WHERE intent_signature = $1
		ORDER BY generation ASC
	`

	rows, err := s.pool.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("get orders for intent %s: %w", signature, err)
	}
	defer rows.Close()

	var orders []*domain.TradeOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateStatus advances order status from -> to. The WHERE clause guards
// against both illegal edges and concurrent writers holding a stale view.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	if !domain.CanTransition(from, to) {
		return storage.ErrInvalidTransition
	}

	query := `
		UPDATE trade_orders
		SET status = $1
		WHERE order_id = $2 AND status = $3
	`

	tag, err := s.pool.Exec(ctx, query, string(to), orderID, string(from))
	if err != nil {
		return fmt.Errorf("update order %s status: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the order is missing or its status moved on.
		if _, err := s.GetByID(ctx, orderID); err != nil {
			return err
		}
		return storage.ErrInvalidTransition
	}
	return nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for scanOrder.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.TradeOrder, error) {
	var (
		o           domain.TradeOrder
		sized       int64
		priorityFee int64
		status      string
	)
	err := row.Scan(
		&o.OrderID, &o.IntentSignature, &o.Generation,
		&sized, &o.MaxSlippageBps, &priorityFee,
		&status, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.SizedInputAmount = uint64(sized)
	o.PriorityFeeLamports = uint64(priorityFee)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}
