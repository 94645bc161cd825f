package domain

import "time"

// Outcome classifies how an execution attempt ended.
type Outcome string

// Outcome constants. Timeout is distinct from failure: a timed-out
// transaction may still land and is resolved by reconciliation.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
)

// ExecutionResult records the terminal (or provisionally timed-out) fate of
// exactly one TradeOrder.
type ExecutionResult struct {
	OrderID              string
	IntentSignature      string
	TxSignature          string // follower transaction signature, empty if never submitted
	SubmittedAt          time.Time
	ConfirmedAt          *time.Time
	LatencyMs            int64 // detection -> submission acknowledgment
	Outcome              Outcome
	FailureReason        *string
	RealizedOutputAmount *uint64
	Attempts             int // submission attempts actually made (1 + retries)
}

// BalanceSnapshot is a point-in-time view of the follower wallet's SOL
// holdings. Sizing reads exactly one immutable snapshot per decision.
type BalanceSnapshot struct {
	Lamports uint64
	TakenAt  time.Time
}

// Age returns how old the snapshot is at time now.
func (b BalanceSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(b.TakenAt)
}
