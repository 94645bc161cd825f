package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Copy Trading Session Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Source account: `%s`\n\n", r.SourceAccount))
	sb.WriteString(fmt.Sprintf("Window: %s to %s\n\n",
		r.WindowStart.Format(time.RFC3339), r.WindowEnd.Format(time.RFC3339)))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Executions | %d |\n", r.Stats.Attempts))
	sb.WriteString(fmt.Sprintf("| Confirmed | %d |\n", r.Stats.Successes))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", r.Stats.Failures))
	sb.WriteString(fmt.Sprintf("| Timed out | %d |\n", r.Stats.Timeouts))
	sb.WriteString(fmt.Sprintf("| Rejected by sizing | %d |\n", r.Stats.Rejected))
	sb.WriteString(fmt.Sprintf("| Avg latency (ms) | %.1f |\n", r.Stats.AvgLatencyMs))
	sb.WriteString(fmt.Sprintf("| Max latency (ms) | %d |\n", r.Stats.MaxLatencyMs))
	sb.WriteString(fmt.Sprintf("| Within 150ms budget | %d |\n", r.Stats.WithinBudget))
	sb.WriteString("\n")

	// Latency histogram
	sb.WriteString("## Latency Distribution\n\n")
	if len(r.Stats.LatencyHistogram) > 0 {
		sb.WriteString("| Bucket | Count |\n")
		sb.WriteString("|--------|-------|\n")
		labels := BucketLabels()
		for i, count := range r.Stats.LatencyHistogram {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", labels[i], count))
		}
	} else {
		sb.WriteString("No latency data available.\n")
	}
	sb.WriteString("\n")

	// PnL flows
	sb.WriteString("## Net Flows by Mint\n\n")
	if len(r.Flows) > 0 {
		sb.WriteString("| Mint | Net Amount (minor units) |\n")
		sb.WriteString("|------|--------------------------|\n")
		for _, f := range r.Flows {
			sb.WriteString(fmt.Sprintf("| `%s` | %d |\n", f.Mint, f.Amount))
		}
	} else {
		sb.WriteString("No confirmed flows in this window.\n")
	}
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Submitted | Venue | Direction | Sized | Realized | Outcome | Latency (ms) | Attempts | Tx |\n")
		sb.WriteString("|-----------|-------|-----------|-------|----------|---------|--------------|----------|----|\n")
		for _, t := range r.Trades {
			realized := "-"
			if t.RealizedAmount != nil {
				realized = fmt.Sprintf("%d", *t.RealizedAmount)
			}
			tx := "-"
			if t.TxSignature != "" {
				tx = fmt.Sprintf("`%s`", t.TxSignature)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s | %s | %d | %d | %s |\n",
				t.SubmittedAt.Format(time.RFC3339), t.Venue, t.Direction,
				t.SizedAmount, realized, t.Outcome, t.LatencyMs, t.Attempts, tx))
		}
	} else {
		sb.WriteString("No trades in this window.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
