package sizing

import (
	"math"
	"testing"
)

func TestPolicy_DesiredAmountFixed(t *testing.T) {
	p := Policy{Mode: ModeFixed, FixedLamports: 50_000_000}

	got, err := p.DesiredAmount(2_000_000_000)
	if err != nil {
		t.Fatalf("DesiredAmount: %v", err)
	}
	if got != 50_000_000 {
		t.Errorf("expected 50000000, got %d", got)
	}
}

func TestPolicy_DesiredAmountPercentage(t *testing.T) {
	// 10% of a 2 SOL source trade is 0.2 SOL.
	p := Policy{Mode: ModePercentage, PercentageBps: 1000}

	got, err := p.DesiredAmount(2_000_000_000)
	if err != nil {
		t.Fatalf("DesiredAmount: %v", err)
	}
	if got != 200_000_000 {
		t.Errorf("expected 200000000, got %d", got)
	}
}

func TestPolicy_DesiredAmountMultiplier(t *testing.T) {
	// 1.5x the source amount.
	p := Policy{Mode: ModeMultiplier, MultiplierBps: 15000}

	got, err := p.DesiredAmount(1_000_000_000)
	if err != nil {
		t.Fatalf("DesiredAmount: %v", err)
	}
	if got != 1_500_000_000 {
		t.Errorf("expected 1500000000, got %d", got)
	}
}

func TestPolicy_DesiredAmountUnknownMode(t *testing.T) {
	p := Policy{Mode: "martingale"}

	if _, err := p.DesiredAmount(1); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestScaleBps(t *testing.T) {
	tests := []struct {
		name   string
		amount uint64
		bps    int
		want   uint64
	}{
		{"zero amount", 0, 1000, 0},
		{"zero bps", 1_000_000, 0, 0},
		{"negative bps", 1_000_000, -5, 0},
		{"full", 1_000_000, 10000, 1_000_000},
		{"half", 1_000_000, 5000, 500_000},
		{"rounds down", 99, 5000, 49},
		{"large amount no overflow", math.MaxUint64 / 2, 10000, math.MaxUint64 / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scaleBps(tt.amount, tt.bps); got != tt.want {
				t.Errorf("scaleBps(%d, %d) = %d, want %d", tt.amount, tt.bps, got, tt.want)
			}
		})
	}
}
