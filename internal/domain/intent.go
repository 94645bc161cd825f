package domain

import (
	"fmt"
	"time"
)

// Direction of an observed swap from the source account's perspective.
type Direction string

// Direction constants
const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Venue identifies the DEX or aggregator the source trade went through.
// The set is closed: parsers emit exactly one of these values.
type Venue string

// Venue constants
const (
	VenueRaydium      Venue = "raydium"
	VenuePumpFun      Venue = "pumpfun"
	VenueJupiter      Venue = "jupiter"
	VenueUnrecognized Venue = "unrecognized"
)

// TradeIntent is a detected, normalized representation of a source-account
// swap, prior to sizing. Uniquely identified by RawSignature and immutable
// once created; sizing derives a TradeOrder rather than mutating the intent.
//
// Amounts are integers in native minor units (lamports for SOL, base units
// for SPL tokens). Floats are never used for amounts.
type TradeIntent struct {
	SourceAccount  string
	RawSignature   string
	Slot           int64
	ObservedAt     time.Time // wall clock
	ObservedAtMono int64     // monotonic nanoseconds, for latency measurement
	Direction      Direction
	InputMint      string
	OutputMint     string
	InputAmount    uint64
	OutputAmount   *uint64 // nil until confirmed on-chain
	Venue          Venue
}

// Validate checks intent invariants.
func (i *TradeIntent) Validate() error {
	if i.RawSignature == "" {
		return fmt.Errorf("intent missing signature")
	}
	if i.SourceAccount == "" {
		return fmt.Errorf("intent %s missing source account", i.RawSignature)
	}
	if i.InputAmount == 0 {
		return fmt.Errorf("intent %s has zero input amount", i.RawSignature)
	}
	if i.InputMint == "" || i.OutputMint == "" {
		return fmt.Errorf("intent %s missing mint", i.RawSignature)
	}
	if i.Direction != DirectionBuy && i.Direction != DirectionSell {
		return fmt.Errorf("intent %s has invalid direction %q", i.RawSignature, i.Direction)
	}
	return nil
}
