// Package stats folds execution outcomes into session aggregates for
// reporting and notifications. Aggregates are derived data: they are always
// recomputed from stored results and never persisted as truth.
package stats

import (
	"context"
	"fmt"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// latencyBudgetMs is the soft end-to-end target from detection to
// submission acknowledgment.
const latencyBudgetMs = 150

// Aggregator accumulates results into a SessionStats. Safe for concurrent
// use.
type Aggregator struct {
	mu    sync.Mutex
	stats *domain.SessionStats
	sum   int64 // latency sum for the running average
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{stats: domain.NewSessionStats()}
}

// AddResult folds one execution result. The intent and order provide the
// mint flow the result itself does not carry; either may be nil, in which
// case realized PnL is skipped for that result.
func (a *Aggregator) AddResult(res *domain.ExecutionResult, intent *domain.TradeIntent, order *domain.TradeOrder) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.stats
	s.Attempts++

	switch res.Outcome {
	case domain.OutcomeSuccess:
		s.Successes++
	case domain.OutcomeFailed:
		s.Failures++
	case domain.OutcomeTimeout:
		s.Timeouts++
	}

	if res.TxSignature != "" {
		a.sum += res.LatencyMs
		submitted := s.Successes + s.Failures + s.Timeouts
		if submitted > 0 {
			s.AvgLatencyMs = float64(a.sum) / float64(submitted)
		}
		if res.LatencyMs > s.MaxLatencyMs {
			s.MaxLatencyMs = res.LatencyMs
		}
		if res.LatencyMs <= latencyBudgetMs {
			s.WithinBudget++
		}
		s.LatencyHistogram[bucketFor(res.LatencyMs)]++
	}

	if res.Outcome == domain.OutcomeSuccess && intent != nil && order != nil {
		if res.RealizedOutputAmount != nil {
			s.RealizedByMint[intent.OutputMint] += int64(*res.RealizedOutputAmount)
		}
		s.RealizedByMint[intent.InputMint] -= int64(order.SizedInputAmount)
	}
}

// AddRejection counts a sizing rejection.
func (a *Aggregator) AddRejection() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Rejected++
}

// Snapshot returns a copy of the current aggregates.
func (a *Aggregator) Snapshot() domain.SessionStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := *a.stats
	out.LatencyHistogram = append([]int(nil), a.stats.LatencyHistogram...)
	out.RealizedByMint = make(map[string]int64, len(a.stats.RealizedByMint))
	for mint, v := range a.stats.RealizedByMint {
		out.RealizedByMint[mint] = v
	}
	return out
}

func bucketFor(latencyMs int64) int {
	for i, bound := range domain.LatencyBucketBoundsMs {
		if latencyMs <= bound {
			return i
		}
	}
	return len(domain.LatencyBucketBoundsMs)
}

// Fold recomputes session stats from storage, joining each result back to
// its intent and order for mint flows.
func Fold(ctx context.Context, results storage.ResultStore, intents storage.IntentStore, orders storage.OrderStore, limit int) (domain.SessionStats, error) {
	agg := NewAggregator()

	stored, err := results.Latest(ctx, limit)
	if err != nil {
		return domain.SessionStats{}, fmt.Errorf("load results: %w", err)
	}

	for _, res := range stored {
		var intent *domain.TradeIntent
		var order *domain.TradeOrder
		if intents != nil {
			intent, _ = intents.GetBySignature(ctx, res.IntentSignature)
		}
		if orders != nil {
			order, _ = orders.GetByID(ctx, res.OrderID)
		}
		agg.AddResult(res, intent, order)
	}
	return agg.Snapshot(), nil
}
