package sizing

import (
	"fmt"

	"solana-copy-trader/internal/config"
)

// Mode selects how the follower amount is derived from the source amount.
type Mode string

// Sizing modes
const (
	ModeFixed      Mode = "fixed"
	ModePercentage Mode = "percentage"
	ModeMultiplier Mode = "multiplier"
)

// Policy is an immutable snapshot of the sizing and execution parameters in
// force when an order is created. Orders capture their values from a Policy
// at creation time; later config changes produce a new Policy and never
// touch existing orders.
type Policy struct {
	Mode          Mode
	FixedLamports uint64
	PercentageBps int
	MultiplierBps int

	MinTradeLamports   uint64
	MaxTradeLamports   uint64 // 0 = uncapped
	FeeReserveLamports uint64

	MaxSlippageBps      int
	PriorityFeeLamports uint64
}

// PolicyFromConfig builds a Policy from validated configuration.
func PolicyFromConfig(s config.SizingConfig, e config.ExecutionConfig) Policy {
	return Policy{
		Mode:                Mode(s.Mode),
		FixedLamports:       s.FixedLamports,
		PercentageBps:       s.PercentageBps,
		MultiplierBps:       s.MultiplierBps,
		MinTradeLamports:    s.MinTradeLamports,
		MaxTradeLamports:    s.MaxTradeLamports,
		FeeReserveLamports:  s.FeeReserveLamports,
		MaxSlippageBps:      e.MaxSlippageBps,
		PriorityFeeLamports: e.PriorityFeeLamports,
	}
}

// DesiredAmount computes the policy amount for a source trade of the given
// size, before balance capping.
func (p Policy) DesiredAmount(sourceAmount uint64) (uint64, error) {
	switch p.Mode {
	case ModeFixed:
		return p.FixedLamports, nil
	case ModePercentage:
		return scaleBps(sourceAmount, p.PercentageBps), nil
	case ModeMultiplier:
		return scaleBps(sourceAmount, p.MultiplierBps), nil
	default:
		return 0, fmt.Errorf("unknown sizing mode %q", p.Mode)
	}
}

// scaleBps computes amount*bps/10000 without overflowing uint64.
func scaleBps(amount uint64, bps int) uint64 {
	if bps <= 0 {
		return 0
	}
	b := uint64(bps)
	return (amount/10000)*b + (amount%10000)*b/10000
}
