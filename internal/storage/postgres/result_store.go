package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// Insert adds a result. Returns ErrDuplicateKey if order_id exists.
func (s *ResultStore) Insert(ctx context.Context, r *domain.ExecutionResult) error {
	if r == nil || r.OrderID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO execution_results (
			order_id, intent_signature, tx_signature,
			submitted_at, confirmed_at, latency_ms,
			outcome, failure_reason, realized_output_amount, attempts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		r.OrderID, r.IntentSignature, r.TxSignature,
		r.SubmittedAt, r.ConfirmedAt, r.LatencyMs,
		string(r.Outcome), r.FailureReason, amountPtr(r.RealizedOutputAmount), r.Attempts,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetByOrderID retrieves a result. Returns ErrNotFound if not exists.
func (s *ResultStore) GetByOrderID(ctx context.Context, orderID string) (*domain.ExecutionResult, error) {
	query := selectResults + ` WHERE order_id = $1`

	r, err := scanResult(s.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get result %s: %w", orderID, err)
	}
	return r, nil
}

// Latest returns up to n results ordered by submission time, newest first.
func (s *ResultStore) Latest(ctx context.Context, n int) ([]*domain.ExecutionResult, error) {
	query := selectResults + ` ORDER BY submitted_at DESC LIMIT $1`
	return s.queryResults(ctx, query, n)
}

// GetByOutcome returns up to limit results with the given outcome, newest first.
func (s *ResultStore) GetByOutcome(ctx context.Context, outcome domain.Outcome, limit int) ([]*domain.ExecutionResult, error) {
	query := selectResults + ` WHERE outcome = $1 ORDER BY submitted_at DESC LIMIT $2`
	return s.queryResults(ctx, query, string(outcome), limit)
}

// GetByTimeRange returns results submitted within [start, end], oldest first.
func (s *ResultStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.ExecutionResult, error) {
	query := selectResults + ` WHERE submitted_at >= $1 AND submitted_at <= $2 ORDER BY submitted_at ASC`
	return s.queryResults(ctx, query, start, end)
}

// Reconcile resolves a timeout result to its final outcome. The WHERE guard
// ensures only a timeout row can flip, and only once.
func (s *ResultStore) Reconcile(ctx context.Context, orderID string, outcome domain.Outcome, confirmedAt time.Time, realized *uint64) error {
	if outcome != domain.OutcomeSuccess && outcome != domain.OutcomeFailed {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE execution_results
		SET outcome = $1,
		    confirmed_at = CASE WHEN $1 = 'success' THEN $2 ELSE confirmed_at END,
		    realized_output_amount = CASE WHEN $1 = 'success' THEN $3 ELSE realized_output_amount END
		WHERE order_id = $4 AND outcome = 'timeout'
	`

	tag, err := s.pool.Exec(ctx, query, string(outcome), confirmedAt, amountPtr(realized), orderID)
	if err != nil {
		return fmt.Errorf("reconcile result %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByOrderID(ctx, orderID); err != nil {
			return err
		}
		return storage.ErrInvalidTransition
	}
	return nil
}

const selectResults = `
	SELECT order_id, intent_signature, tx_signature,
	       submitted_at, confirmed_at, latency_ms,
	       outcome, failure_reason, realized_output_amount, attempts
	FROM execution_results`

func (s *ResultStore) queryResults(ctx context.Context, query string, args ...any) ([]*domain.ExecutionResult, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []*domain.ExecutionResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanResult(row rowScanner) (*domain.ExecutionResult, error) {
	var (
		r        domain.ExecutionResult
		outcome  string
		realized *int64
	)
	err := row.Scan(
		&r.OrderID, &r.IntentSignature, &r.TxSignature,
		&r.SubmittedAt, &r.ConfirmedAt, &r.LatencyMs,
		&outcome, &r.FailureReason, &realized, &r.Attempts,
	)
	if err != nil {
		return nil, err
	}
	r.Outcome = domain.Outcome(outcome)
	if realized != nil {
		v := uint64(*realized)
		r.RealizedOutputAmount = &v
	}
	return &r, nil
}
