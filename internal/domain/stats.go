package domain

// LatencyBucketBoundsMs are the upper bounds (inclusive) of the latency
// histogram buckets, in milliseconds. The final +Inf bucket is implicit.
// 150ms is the soft end-to-end budget; buckets bracket it.
var LatencyBucketBoundsMs = []int64{50, 100, 150, 250, 500, 1000, 5000}

// SessionStats aggregates execution outcomes for reporting. It is always
// recomputed by folding over stored ExecutionResults; it is never the
// source of truth.
type SessionStats struct {
	Attempts  int
	Successes int
	Failures  int
	Timeouts  int
	Rejected  int

	// LatencyHistogram counts results per bucket of LatencyBucketBoundsMs,
	// plus one overflow bucket at the end.
	LatencyHistogram []int
	AvgLatencyMs     float64
	MaxLatencyMs     int64

	// PnL per output mint, in minor units. Positive = net acquired.
	RealizedByMint map[string]int64

	// WithinBudget counts results at or under the 150ms soft target.
	WithinBudget int
}

// NewSessionStats returns a zeroed stats value with histogram allocated.
func NewSessionStats() *SessionStats {
	return &SessionStats{
		LatencyHistogram: make([]int, len(LatencyBucketBoundsMs)+1),
		RealizedByMint:   make(map[string]int64),
	}
}
