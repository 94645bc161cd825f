package sizing

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"solana-copy-trader/internal/detector"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/idhash"
	"solana-copy-trader/internal/solana/stub"
	"solana-copy-trader/internal/storage/memory"
)

const (
	testWallet = "FollowerWa11et1111111111111111111111111111111"
	testToken  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func testPolicy() Policy {
	return Policy{
		Mode:                ModePercentage,
		PercentageBps:       1000,
		MinTradeLamports:    10_000_000,
		FeeReserveLamports:  50_000_000,
		MaxSlippageBps:      150,
		PriorityFeeLamports: 100_000,
	}
}

func buyIntent(signature string, inputLamports uint64) *domain.TradeIntent {
	return &domain.TradeIntent{
		SourceAccount: "SourceAccount111111111111111111111111111111",
		RawSignature:  signature,
		Slot:          250_000_001,
		ObservedAt:    time.Now().UTC(),
		Direction:     domain.DirectionBuy,
		InputMint:     detector.WSOL,
		OutputMint:    testToken,
		InputAmount:   inputLamports,
		Venue:         domain.VenueRaydium,
	}
}

func sellIntent(signature string, tokenAmount uint64) *domain.TradeIntent {
	i := buyIntent(signature, tokenAmount)
	i.Direction = domain.DirectionSell
	i.InputMint = testToken
	i.OutputMint = detector.WSOL
	return i
}

func newTestEngine(p Policy, rpc *stub.RPCClient, orders *memory.OrderStore) *Engine {
	balances := NewBalanceTracker(rpc, testWallet, 5*time.Second)
	return NewEngine(p, balances, orders, log.New(io.Discard, "", 0))
}

func TestEngine_SizesBuyWithinBalance(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(testWallet, 2_000_000_000)
	orders := memory.NewOrderStore()
	e := newTestEngine(testPolicy(), rpc, orders)
	ctx := context.Background()

	order, rejection, err := e.Size(ctx, buyIntent("sig-1", 2_000_000_000), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if rejection != nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}

	if order.SizedInputAmount != 200_000_000 {
		t.Errorf("expected 200000000 lamports, got %d", order.SizedInputAmount)
	}
	if order.OrderID != idhash.ComputeOrderID("sig-1", 0) {
		t.Errorf("unexpected order ID %s", order.OrderID)
	}
	if order.Status != domain.OrderStatusCreated {
		t.Errorf("expected CREATED, got %s", order.Status)
	}
	if order.MaxSlippageBps != 150 || order.PriorityFeeLamports != 100_000 {
		t.Errorf("order did not capture execution parameters: %+v", order)
	}

	// Persisted.
	if _, err := orders.GetByID(ctx, order.OrderID); err != nil {
		t.Errorf("order not persisted: %v", err)
	}
}

func TestEngine_CapsBuyByAvailableBalance(t *testing.T) {
	rpc := stub.NewRPCClient()
	// 0.15 SOL total, 0.05 reserved for fees: only 0.1 SOL is spendable.
	rpc.SetBalance(testWallet, 150_000_000)
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())

	order, rejection, err := e.Size(context.Background(), buyIntent("sig-cap", 2_000_000_000), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if rejection != nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}
	if order.SizedInputAmount != 100_000_000 {
		t.Errorf("expected cap at 100000000, got %d", order.SizedInputAmount)
	}
}

func TestEngine_CapsBuyByMaxTrade(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(testWallet, 10_000_000_000)
	p := testPolicy()
	p.MaxTradeLamports = 50_000_000
	e := newTestEngine(p, rpc, memory.NewOrderStore())

	order, rejection, err := e.Size(context.Background(), buyIntent("sig-max", 2_000_000_000), 0)
	if err != nil || rejection != nil {
		t.Fatalf("Size: order=%v rejection=%v err=%v", order, rejection, err)
	}
	if order.SizedInputAmount != 50_000_000 {
		t.Errorf("expected max cap 50000000, got %d", order.SizedInputAmount)
	}
}

func TestEngine_RejectsBelowMinTrade(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(testWallet, 2_000_000_000)
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())

	// 10% of 0.05 SOL is 0.005 SOL, under the 0.01 SOL minimum.
	order, rejection, err := e.Size(context.Background(), buyIntent("sig-small", 50_000_000), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if order != nil {
		t.Fatalf("unexpected order: %+v", order)
	}
	if rejection == nil || rejection.Code != domain.RejectBelowMinTrade {
		t.Fatalf("expected BELOW_MIN_TRADE, got %+v", rejection)
	}
}

func TestEngine_RejectsInsufficientBalance(t *testing.T) {
	rpc := stub.NewRPCClient()
	// Balance covers the fee reserve plus less than the minimum trade.
	rpc.SetBalance(testWallet, 55_000_000)
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())

	order, rejection, err := e.Size(context.Background(), buyIntent("sig-poor", 2_000_000_000), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if order != nil {
		t.Fatalf("unexpected order: %+v", order)
	}
	if rejection == nil || rejection.Code != domain.RejectInsufficientBalance {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %+v", rejection)
	}
}

func TestEngine_RejectsWhenBalanceBelowFeeReserve(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(testWallet, 40_000_000)
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())

	_, rejection, err := e.Size(context.Background(), buyIntent("sig-dust", 2_000_000_000), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if rejection == nil || rejection.Code != domain.RejectInsufficientBalance {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %+v", rejection)
	}
}

func TestEngine_RejectsStaleSnapshot(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.BalanceErr = errors.New("rpc unavailable")
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())

	order, rejection, err := e.Size(context.Background(), buyIntent("sig-stale", 2_000_000_000), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if order != nil {
		t.Fatalf("unexpected order: %+v", order)
	}
	if rejection == nil || rejection.Code != domain.RejectStaleSnapshot {
		t.Fatalf("expected STALE_SNAPSHOT, got %+v", rejection)
	}
}

func TestEngine_RejectsDuplicateIntent(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(testWallet, 10_000_000_000)
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())
	ctx := context.Background()

	intent := buyIntent("sig-twice", 2_000_000_000)
	if _, rejection, err := e.Size(ctx, intent, 0); err != nil || rejection != nil {
		t.Fatalf("first Size: rejection=%v err=%v", rejection, err)
	}

	order, rejection, err := e.Size(ctx, intent, 0)
	if err != nil {
		t.Fatalf("second Size: %v", err)
	}
	if order != nil {
		t.Fatalf("duplicate produced an order: %+v", order)
	}
	if rejection == nil || rejection.Code != domain.RejectDuplicateIntent {
		t.Fatalf("expected DUPLICATE_INTENT, got %+v", rejection)
	}

	// A new generation is a deliberate retry, not a duplicate.
	retry, rejection, err := e.Size(ctx, intent, 1)
	if err != nil || rejection != nil {
		t.Fatalf("generation 1 Size: rejection=%v err=%v", rejection, err)
	}
	if retry.Generation != 1 {
		t.Errorf("expected generation 1, got %d", retry.Generation)
	}
}

func TestEngine_ReservationsPreventDoubleSpend(t *testing.T) {
	rpc := stub.NewRPCClient()
	// Two 10% orders of a 2 SOL source would want 0.2 SOL each; the wallet
	// only covers 0.3 SOL past the fee reserve.
	rpc.SetBalance(testWallet, 350_000_000)
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())
	ctx := context.Background()

	first, _, err := e.Size(ctx, buyIntent("sig-a", 2_000_000_000), 0)
	if err != nil || first == nil {
		t.Fatalf("first Size: %v", err)
	}
	if first.SizedInputAmount != 200_000_000 {
		t.Fatalf("expected 200000000, got %d", first.SizedInputAmount)
	}

	second, rejection, err := e.Size(ctx, buyIntent("sig-b", 2_000_000_000), 0)
	if err != nil {
		t.Fatalf("second Size: %v", err)
	}
	if rejection != nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}
	if second.SizedInputAmount != 100_000_000 {
		t.Errorf("expected second order capped at 100000000, got %d", second.SizedInputAmount)
	}
}

func TestEngine_SellSkipsLamportThresholds(t *testing.T) {
	rpc := stub.NewRPCClient()
	// Wallet is nearly empty; a sell spends tokens, not SOL.
	rpc.SetBalance(testWallet, 1_000_000)
	rpc.SetTokenBalance(testWallet, testToken, 10_000)
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())

	// 10% of 5000 token base units, below the lamport minimum by value but
	// denominated in a different unit entirely.
	order, rejection, err := e.Size(context.Background(), sellIntent("sig-sell", 5000), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if rejection != nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}
	if order.SizedInputAmount != 500 {
		t.Errorf("expected 500 token units, got %d", order.SizedInputAmount)
	}
}

func TestEngine_CapsSellByTokenBalance(t *testing.T) {
	rpc := stub.NewRPCClient()
	// 10% of the source's 5000 units would be 500, but the wallet holds 300.
	rpc.SetTokenBalance(testWallet, testToken, 300)
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())

	order, rejection, err := e.Size(context.Background(), sellIntent("sig-sell-cap", 5000), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if rejection != nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}
	if order.SizedInputAmount != 300 {
		t.Errorf("expected cap at held 300, got %d", order.SizedInputAmount)
	}
}

func TestEngine_RejectsSellWithoutTokenBalance(t *testing.T) {
	rpc := stub.NewRPCClient()
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())

	order, rejection, err := e.Size(context.Background(), sellIntent("sig-sell-empty", 5000), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if order != nil {
		t.Fatalf("unexpected order: %+v", order)
	}
	if rejection == nil || rejection.Code != domain.RejectInsufficientBalance {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %+v", rejection)
	}
}

func TestEngine_RejectsFixedModeSell(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(testWallet, 10_000_000_000)
	rpc.SetTokenBalance(testWallet, testToken, 10_000)
	p := testPolicy()
	p.Mode = ModeFixed
	p.FixedLamports = 5_000_000
	e := newTestEngine(p, rpc, memory.NewOrderStore())

	// A lamport figure must never be applied to an amount in token units.
	order, rejection, err := e.Size(context.Background(), sellIntent("sig-sell-fixed", 123), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if order != nil {
		t.Fatalf("unexpected order: %+v", order)
	}
	if rejection == nil || rejection.Code != domain.RejectUnsupportedMode {
		t.Fatalf("expected UNSUPPORTED_MODE, got %+v", rejection)
	}
}

func TestEngine_RejectsSellWhenTokenLookupFails(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.TokenBalanceErr = errors.New("rpc unavailable")
	e := newTestEngine(testPolicy(), rpc, memory.NewOrderStore())

	order, rejection, err := e.Size(context.Background(), sellIntent("sig-sell-down", 5000), 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if order != nil {
		t.Fatalf("unexpected order: %+v", order)
	}
	if rejection == nil || rejection.Code != domain.RejectStaleSnapshot {
		t.Fatalf("expected STALE_SNAPSHOT, got %+v", rejection)
	}
}

func TestBalanceTracker_CachesWithinMaxAge(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(testWallet, 1_000_000_000)
	tracker := NewBalanceTracker(rpc, testWallet, time.Minute)
	ctx := context.Background()

	first, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if first.Lamports != 1_000_000_000 {
		t.Fatalf("expected 1000000000, got %d", first.Lamports)
	}

	// A balance change on-chain is invisible until the cache expires.
	rpc.SetBalance(testWallet, 5)
	second, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if second.Lamports != 1_000_000_000 {
		t.Errorf("expected cached 1000000000, got %d", second.Lamports)
	}

	tracker.Invalidate()
	third, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if third.Lamports != 5 {
		t.Errorf("expected refreshed 5, got %d", third.Lamports)
	}
}

func TestBalanceTracker_ReserveAndRelease(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(testWallet, 1_000_000_000)
	tracker := NewBalanceTracker(rpc, testWallet, time.Minute)
	ctx := context.Background()

	if _, err := tracker.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	tracker.Reserve(300_000_000)
	s, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if s.Lamports != 700_000_000 {
		t.Errorf("expected 700000000 after reserve, got %d", s.Lamports)
	}

	tracker.Release(300_000_000)
	s, err = tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if s.Lamports != 1_000_000_000 {
		t.Errorf("expected 1000000000 after release, got %d", s.Lamports)
	}

	// Reservations larger than the balance floor at zero.
	tracker.Reserve(2_000_000_000)
	s, err = tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if s.Lamports != 0 {
		t.Errorf("expected 0 after over-reserve, got %d", s.Lamports)
	}
}

func TestBalanceTracker_RefreshResetsReservations(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(testWallet, 1_000_000_000)
	tracker := NewBalanceTracker(rpc, testWallet, time.Minute)
	ctx := context.Background()

	if _, err := tracker.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	tracker.Reserve(400_000_000)

	// The chain settled the debit: refreshed balance already excludes it.
	rpc.SetBalance(testWallet, 600_000_000)
	tracker.Invalidate()

	s, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if s.Lamports != 600_000_000 {
		t.Errorf("expected 600000000 without double-counted reservation, got %d", s.Lamports)
	}
}
