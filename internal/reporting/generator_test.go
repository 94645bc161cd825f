package reporting

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/idhash"
	"solana-copy-trader/internal/storage/memory"
)

const (
	wsolMint = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

var reportBase = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func setupTestData(t *testing.T) (*memory.IntentStore, *memory.OrderStore, *memory.ResultStore) {
	t.Helper()
	ctx := context.Background()

	intents := memory.NewIntentStore()
	orders := memory.NewOrderStore()
	results := memory.NewResultStore()

	// A confirmed buy and a failed buy an hour later.
	seed := []struct {
		signature string
		submitted time.Time
		outcome   domain.Outcome
		latency   int64
		realized  *uint64
		reason    *string
	}{
		{"sig-1", reportBase, domain.OutcomeSuccess, 120, uptr(36_450_123), nil},
		{"sig-2", reportBase.Add(time.Hour), domain.OutcomeFailed, 480, nil, sptr("slippage exceeded")},
	}

	for _, s := range seed {
		intent := &domain.TradeIntent{
			SourceAccount: "src",
			RawSignature:  s.signature,
			Slot:          250_000_001,
			ObservedAt:    s.submitted,
			Direction:     domain.DirectionBuy,
			InputMint:     wsolMint,
			OutputMint:    usdcMint,
			InputAmount:   2_000_000_000,
			Venue:         domain.VenueRaydium,
		}
		if err := intents.Insert(ctx, intent); err != nil {
			t.Fatalf("Insert intent failed: %v", err)
		}

		order := &domain.TradeOrder{
			OrderID:          idhash.ComputeOrderID(s.signature, 0),
			IntentSignature:  s.signature,
			SizedInputAmount: 200_000_000,
			MaxSlippageBps:   150,
			Status:           domain.OrderStatusCreated,
			CreatedAt:        s.submitted.UnixMilli(),
		}
		if err := orders.Insert(ctx, order); err != nil {
			t.Fatalf("Insert order failed: %v", err)
		}

		result := &domain.ExecutionResult{
			OrderID:              order.OrderID,
			IntentSignature:      s.signature,
			TxSignature:          "tx-" + s.signature,
			SubmittedAt:          s.submitted,
			LatencyMs:            s.latency,
			Outcome:              s.outcome,
			RealizedOutputAmount: s.realized,
			FailureReason:        s.reason,
			Attempts:             1,
		}
		if s.outcome == domain.OutcomeSuccess {
			confirmed := s.submitted.Add(2 * time.Second)
			result.ConfirmedAt = &confirmed
		}
		if err := results.Insert(ctx, result); err != nil {
			t.Fatalf("Insert result failed: %v", err)
		}
	}

	return intents, orders, results
}

func uptr(v uint64) *uint64 { return &v }
func sptr(s string) *string { return &s }

func TestGenerator_Generate(t *testing.T) {
	intents, orders, results := setupTestData(t)
	g := NewGenerator(intents, orders, results, "src").
		WithClock(func() time.Time { return reportBase.Add(2 * time.Hour) })

	report, err := g.Generate(context.Background(), reportBase.Add(-time.Minute), reportBase.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(report.Trades))
	}
	if report.Stats.Successes != 1 || report.Stats.Failures != 1 {
		t.Errorf("unexpected stats: %+v", report.Stats)
	}

	// Trades come back oldest first.
	if report.Trades[0].IntentSignature != "sig-1" {
		t.Errorf("expected sig-1 first, got %s", report.Trades[0].IntentSignature)
	}
	if report.Trades[0].Venue != "raydium" || report.Trades[0].SizedAmount != 200_000_000 {
		t.Errorf("trade row missing joined fields: %+v", report.Trades[0])
	}

	// Only the confirmed trade contributes flows.
	flowByMint := map[string]int64{}
	for _, f := range report.Flows {
		flowByMint[f.Mint] = f.Amount
	}
	if flowByMint[usdcMint] != 36_450_123 {
		t.Errorf("unexpected usdc flow: %v", flowByMint)
	}
	if flowByMint[wsolMint] != -200_000_000 {
		t.Errorf("unexpected wsol flow: %v", flowByMint)
	}
}

func TestGenerator_WindowFiltersTrades(t *testing.T) {
	intents, orders, results := setupTestData(t)
	g := NewGenerator(intents, orders, results, "src")

	// Only the first trade falls inside the window.
	report, err := g.Generate(context.Background(), reportBase.Add(-time.Minute), reportBase.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(report.Trades) != 1 || report.Trades[0].IntentSignature != "sig-1" {
		t.Fatalf("unexpected trades: %+v", report.Trades)
	}
}

func TestRenderMarkdown(t *testing.T) {
	intents, orders, results := setupTestData(t)
	g := NewGenerator(intents, orders, results, "src").
		WithClock(func() time.Time { return reportBase.Add(2 * time.Hour) })

	report, err := g.Generate(context.Background(), reportBase.Add(-time.Minute), reportBase.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Copy Trading Session Report",
		"| Confirmed | 1 |",
		"| Failed | 1 |",
		"<=150ms",
		usdcMint,
		"tx-sig-1",
		"slippage exceeded",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	rows := []TradeRow{
		{
			OrderID:         "o1",
			IntentSignature: "sig-1",
			TxSignature:     "tx-1",
			Venue:           "raydium",
			Direction:       "buy",
			InputMint:       wsolMint,
			OutputMint:      usdcMint,
			SourceAmount:    2_000_000_000,
			SizedAmount:     200_000_000,
			RealizedAmount:  uptr(36_450_123),
			Outcome:         "success",
			LatencyMs:       120,
			Attempts:        1,
			SubmittedAt:     reportBase,
		},
		{
			OrderID:       "o2",
			Outcome:       "failed",
			FailureReason: `route error, "no route"`,
			SubmittedAt:   reportBase,
		},
	}

	out := RenderCSV(rows)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "submitted_at,order_id") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "36450123") || !strings.Contains(lines[1], "raydium") {
		t.Errorf("unexpected row: %s", lines[1])
	}
	// Commas and quotes inside a field are escaped.
	if !strings.Contains(lines[2], `"route error, ""no route"""`) {
		t.Errorf("failure reason not escaped: %s", lines[2])
	}
}

func TestWriteFiles(t *testing.T) {
	intents, orders, results := setupTestData(t)
	g := NewGenerator(intents, orders, results, "src")

	report, err := g.Generate(context.Background(), reportBase.Add(-time.Minute), reportBase.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	dir := t.TempDir()
	if err := WriteFiles(report, dir); err != nil {
		t.Fatalf("WriteFiles failed: %v", err)
	}

	md, err := os.ReadFile(filepath.Join(dir, "report.md"))
	if err != nil {
		t.Fatalf("read report.md: %v", err)
	}
	if !strings.Contains(string(md), "# Copy Trading Session Report") {
		t.Error("report.md missing header")
	}

	csv, err := os.ReadFile(filepath.Join(dir, "trades.csv"))
	if err != nil {
		t.Fatalf("read trades.csv: %v", err)
	}
	if !strings.Contains(string(csv), "sig-1") {
		t.Error("trades.csv missing trade row")
	}
}
