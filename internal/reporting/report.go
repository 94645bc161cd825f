package reporting

import (
	"time"

	"solana-copy-trader/internal/domain"
)

// Report is a session report over a time window.
type Report struct {
	// Metadata
	GeneratedAt   time.Time
	SourceAccount string
	WindowStart   time.Time
	WindowEnd     time.Time

	// Aggregates folded from stored results.
	Stats domain.SessionStats

	// Trades, oldest first.
	Trades []TradeRow

	// PnL rows sorted by mint.
	Flows []FlowRow
}

// TradeRow is one executed (or attempted) copy trade.
type TradeRow struct {
	OrderID         string
	IntentSignature string
	TxSignature     string
	Venue           string
	Direction       string
	InputMint       string
	OutputMint      string
	SourceAmount    uint64
	SizedAmount     uint64
	RealizedAmount  *uint64
	Outcome         string
	FailureReason   string
	LatencyMs       int64
	Attempts        int
	SubmittedAt     time.Time
}

// FlowRow is the net amount acquired (positive) or spent (negative) for one
// mint.
type FlowRow struct {
	Mint   string
	Amount int64
}
