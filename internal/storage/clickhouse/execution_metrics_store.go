package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-copy-trader/internal/domain"
)

// ExecutionMetricsStore appends per-execution latency samples to ClickHouse
// for long-horizon analytics. It is an optional sink: the pipeline works
// without it, and writes here are never on the execution critical path.
type ExecutionMetricsStore struct {
	conn *Conn
}

// NewExecutionMetricsStore creates a new ExecutionMetricsStore.
func NewExecutionMetricsStore(conn *Conn) *ExecutionMetricsStore {
	return &ExecutionMetricsStore{conn: conn}
}

// Append records one execution sample.
func (s *ExecutionMetricsStore) Append(ctx context.Context, r *domain.ExecutionResult, inputAmount uint64, outputMint string) error {
	query := `
		INSERT INTO execution_metrics (
			order_id, intent_signature, outcome, latency_ms, attempts,
			input_amount, output_mint, submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		r.OrderID, r.IntentSignature, string(r.Outcome), r.LatencyMs, int32(r.Attempts),
		inputAmount, outputMint, r.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution metric: %w", err)
	}
	return nil
}

// AvgLatencySince returns the average submission latency in milliseconds
// over results submitted after the given time.
func (s *ExecutionMetricsStore) AvgLatencySince(ctx context.Context, since time.Time) (float64, error) {
	query := `
		SELECT avg(latency_ms)
		FROM execution_metrics
		WHERE submitted_at >= ?
	`

	var avg float64
	if err := s.conn.QueryRow(ctx, query, since).Scan(&avg); err != nil {
		return 0, fmt.Errorf("query avg latency: %w", err)
	}
	return avg, nil
}
