package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders trade rows as CSV string.
func RenderCSV(trades []TradeRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("submitted_at,order_id,intent_signature,tx_signature,venue,direction,")
	sb.WriteString("input_mint,output_mint,source_amount,sized_amount,realized_amount,")
	sb.WriteString("outcome,failure_reason,latency_ms,attempts\n")

	// Rows
	for _, t := range trades {
		realized := ""
		if t.RealizedAmount != nil {
			realized = fmt.Sprintf("%d", *t.RealizedAmount)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%d,%d,%s,%s,%s,%d,%d\n",
			t.SubmittedAt.Format(time.RFC3339),
			t.OrderID,
			t.IntentSignature,
			t.TxSignature,
			t.Venue,
			t.Direction,
			t.InputMint,
			t.OutputMint,
			t.SourceAmount,
			t.SizedAmount,
			realized,
			t.Outcome,
			csvEscape(t.FailureReason),
			t.LatencyMs,
			t.Attempts,
		))
	}

	return sb.String()
}

// csvEscape quotes a field containing commas or quotes.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
