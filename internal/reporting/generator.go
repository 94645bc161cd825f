package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/stats"
	"solana-copy-trader/internal/storage"
)

// Generator produces session reports from stored data.
type Generator struct {
	intents storage.IntentStore
	orders  storage.OrderStore
	results storage.ResultStore

	sourceAccount string
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(intents storage.IntentStore, orders storage.OrderStore, results storage.ResultStore, sourceAccount string) *Generator {
	return &Generator{
		intents:       intents,
		orders:        orders,
		results:       results,
		sourceAccount: sourceAccount,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report for results submitted within [start, end].
func (g *Generator) Generate(ctx context.Context, start, end time.Time) (*Report, error) {
	stored, err := g.results.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	agg := stats.NewAggregator()
	trades := make([]TradeRow, 0, len(stored))

	for _, res := range stored {
		row := TradeRow{
			OrderID:         res.OrderID,
			IntentSignature: res.IntentSignature,
			TxSignature:     res.TxSignature,
			Outcome:         string(res.Outcome),
			LatencyMs:       res.LatencyMs,
			Attempts:        res.Attempts,
			SubmittedAt:     res.SubmittedAt,
			RealizedAmount:  res.RealizedOutputAmount,
		}
		if res.FailureReason != nil {
			row.FailureReason = *res.FailureReason
		}

		intent, err := g.intents.GetBySignature(ctx, res.IntentSignature)
		if err == nil {
			row.Venue = string(intent.Venue)
			row.Direction = string(intent.Direction)
			row.InputMint = intent.InputMint
			row.OutputMint = intent.OutputMint
			row.SourceAmount = intent.InputAmount
		} else {
			intent = nil
		}

		order, err := g.orders.GetByID(ctx, res.OrderID)
		if err == nil {
			row.SizedAmount = order.SizedInputAmount
		} else {
			order = nil
		}

		agg.AddResult(res, intent, order)
		trades = append(trades, row)
	}

	s := agg.Snapshot()

	flows := make([]FlowRow, 0, len(s.RealizedByMint))
	for mint, amount := range s.RealizedByMint {
		flows = append(flows, FlowRow{Mint: mint, Amount: amount})
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Mint < flows[j].Mint })

	return &Report{
		GeneratedAt:   g.now(),
		SourceAccount: g.sourceAccount,
		WindowStart:   start,
		WindowEnd:     end,
		Stats:         s,
		Trades:        trades,
		Flows:         flows,
	}, nil
}

// WriteFiles renders the report to <dir>/report.md and <dir>/trades.csv.
func WriteFiles(r *Report, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(RenderMarkdown(r)), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "trades.csv"), []byte(RenderCSV(r.Trades)), 0o644); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	return nil
}

// BucketLabels returns human-readable labels for the latency histogram.
func BucketLabels() []string {
	labels := make([]string, 0, len(domain.LatencyBucketBoundsMs)+1)
	for _, bound := range domain.LatencyBucketBoundsMs {
		labels = append(labels, fmt.Sprintf("<=%dms", bound))
	}
	return append(labels, fmt.Sprintf(">%dms", domain.LatencyBucketBoundsMs[len(domain.LatencyBucketBoundsMs)-1]))
}
