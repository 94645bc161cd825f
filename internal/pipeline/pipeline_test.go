package pipeline

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/detector"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/executor"
	"solana-copy-trader/internal/feed"
	"solana-copy-trader/internal/idhash"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/notify"
	"solana-copy-trader/internal/sizing"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/solana/stub"
	"solana-copy-trader/internal/storage/memory"
	"solana-copy-trader/internal/wallet"
)

const (
	sourceAccount = "SourceAccount111111111111111111111111111111"
	testMint      = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// fakeWS feeds scripted notifications into the feed client.
type fakeWS struct {
	notifications chan solana.LogNotification
	states        chan solana.ConnState
}

func newFakeWS() *fakeWS {
	return &fakeWS{
		notifications: make(chan solana.LogNotification, 16),
		states:        make(chan solana.ConnState, 16),
	}
}

func (w *fakeWS) SubscribeLogs(_ context.Context, _ solana.LogsFilter) (<-chan solana.LogNotification, error) {
	return w.notifications, nil
}

func (w *fakeWS) States() <-chan solana.ConnState { return w.states }

func (w *fakeWS) Close() error { return nil }

// fakeSwaps returns a canned quote and a minimal unsigned transaction.
type fakeSwaps struct{}

func (fakeSwaps) GetQuote(_ context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error) {
	return &jupiter.Quote{
		InputMint:  req.InputMint,
		OutputMint: req.OutputMint,
		OutAmount:  "1000",
		Raw:        json.RawMessage(`{"outAmount":"1000"}`),
	}, nil
}

func (fakeSwaps) GetSwapTransaction(_ context.Context, _ *jupiter.Quote, _ string, _ uint64) (*jupiter.SwapTransaction, error) {
	unsigned := append([]byte{0x01}, make([]byte, ed25519.SignatureSize)...)
	unsigned = append(unsigned, []byte("swap message")...)
	return &jupiter.SwapTransaction{
		SwapTransaction:      base64.StdEncoding.EncodeToString(unsigned),
		LastValidBlockHeight: 1000,
	}, nil
}

// fakeSignatures is a scriptable cross-process dedup cache.
type fakeSignatures struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeSignatures) Seen(_ context.Context, signature string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[signature] {
		return true, nil
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[signature] = true
	return false, nil
}

// recordingSender captures delivered notifications.
type recordingSender struct {
	mu     sync.Mutex
	titles []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) has(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.titles {
		if t == title {
			return true
		}
	}
	return false
}

// rayLog builds the base64 ray_log body for a Raydium swap.
func rayLog(t *testing.T, inputMint, outputMint string, amountIn, amountOut uint64) string {
	t.Helper()
	in, err := base58.Decode(inputMint)
	if err != nil || len(in) != 32 {
		t.Fatalf("bad input mint %s", inputMint)
	}
	out, err := base58.Decode(outputMint)
	if err != nil || len(out) != 32 {
		t.Fatalf("bad output mint %s", outputMint)
	}

	data := make([]byte, 0, 113)
	data = append(data, 0x09)
	data = append(data, make([]byte, 32)...) // amm id
	data = append(data, in...)
	data = append(data, out...)
	data = binary.LittleEndian.AppendUint64(data, amountIn)
	data = binary.LittleEndian.AppendUint64(data, amountOut)
	return base64.StdEncoding.EncodeToString(data)
}

func raydiumLogs(t *testing.T, amountIn uint64) []string {
	t.Helper()
	return []string{
		"Program " + detector.RaydiumAMMV4 + " invoke [1]",
		"Program log: ray_log: " + rayLog(t, detector.WSOL, testMint, amountIn, 5_000_000),
		"Program " + detector.RaydiumAMMV4 + " success",
	}
}

type fixture struct {
	ws       *fakeWS
	rpc      *stub.RPCClient
	intents  *memory.IntentStore
	orders   *memory.OrderStore
	results  *memory.ResultStore
	sender   *recordingSender
	owner    string
	pipeline *Pipeline

	cancel context.CancelFunc
	done   chan error
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)

	key, err := wallet.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer, err := wallet.NewSigner(key)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	f := &fixture{
		ws:      newFakeWS(),
		rpc:     stub.NewRPCClient(),
		intents: memory.NewIntentStore(),
		orders:  memory.NewOrderStore(),
		results: memory.NewResultStore(),
		sender:  &recordingSender{},
		owner:   signer.Address(),
	}
	f.rpc.SetBalance(signer.Address(), 2_000_000_000)

	fc := feed.New(f.ws, f.rpc, memory.NewCheckpointStore(), feed.Options{
		SourceAccount: sourceAccount,
		QueueSize:     16,
		PollInterval:  time.Hour, // streaming only in these tests
		Logger:        quiet,
	})
	det := detector.New(f.intents, detector.Options{
		SourceAccount: sourceAccount,
		Logger:        quiet,
	})
	balances := sizing.NewBalanceTracker(f.rpc, signer.Address(), 5*time.Second)
	engine := sizing.NewEngine(sizing.Policy{
		Mode:               sizing.ModePercentage,
		PercentageBps:      1000,
		MinTradeLamports:   10_000_000,
		FeeReserveLamports: 50_000_000,
		MaxSlippageBps:     150,
	}, balances, f.orders, quiet)
	exec := executor.New(f.rpc, fakeSwaps{}, signer, f.orders, f.results, balances, executor.Options{
		MaxRetries:          1,
		ConfirmTimeout:      500 * time.Millisecond,
		ConfirmPollInterval: 5 * time.Millisecond,
		Logger:              quiet,
	})
	rec := executor.NewReconciler(f.rpc, f.orders, f.results, executor.ReconcilerOptions{
		Interval: time.Hour,
		Logger:   quiet,
	})
	notifier := notify.New([]notify.Sender{f.sender}, notify.Options{Logger: quiet})

	opts.Logger = quiet
	f.pipeline = New(fc, det, engine, exec, rec, notifier, opts)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan error, 1)
	go func() { f.done <- f.pipeline.Run(ctx) }()
	t.Cleanup(func() { f.stop(t) })
}

func (f *fixture) stop(t *testing.T) {
	t.Helper()
	if f.cancel == nil {
		return
	}
	f.cancel()
	f.cancel = nil
	select {
	case err := <-f.done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not shut down")
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (f *fixture) emit(signature string, logs []string) {
	f.ws.notifications <- solana.LogNotification{
		Signature: signature,
		Slot:      250_000_001,
		Logs:      logs,
	}
}

func TestPipeline_TradesEndToEnd(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t)

	// A follower buy lands as stub-tx-1; stage its confirmation and meta
	// before emitting the source trade.
	f.rpc.SetStatus("stub-tx-1", &solana.SignatureStatus{Slot: 250_000_002, ConfirmationStatus: "confirmed"})
	f.rpc.AddTransaction(&solana.Transaction{
		Signature: "stub-tx-1",
		Meta: &solana.TransactionMeta{
			PostTokenBalances: []solana.TokenBalance{
				{Mint: testMint, Owner: f.owner, Amount: 36_450_123},
			},
		},
	})

	f.emit("sig-trade", raydiumLogs(t, 2_000_000_000))

	waitFor(t, "execution result", func() bool {
		res, err := f.results.GetByTimeRange(context.Background(), time.Time{}, time.Now().Add(time.Hour))
		return err == nil && len(res) == 1 && res[0].Outcome == domain.OutcomeSuccess
	})

	// 10% of the source's 2 SOL.
	order, err := f.orders.GetByID(context.Background(), idhash.ComputeOrderID("sig-trade", 0))
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if order.SizedInputAmount != 200_000_000 {
		t.Errorf("expected sized amount 200000000, got %d", order.SizedInputAmount)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Errorf("expected confirmed order, got %s", order.Status)
	}

	waitFor(t, "notifications", func() bool {
		return f.sender.has("Trade detected") && f.sender.has("Execution success")
	})

	stats := f.pipeline.Stats()
	if stats.Successes != 1 {
		t.Errorf("expected 1 success in stats, got %d", stats.Successes)
	}
}

func TestPipeline_RejectionIsCountedAndNotified(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t)

	// 10% of 0.05 SOL is below the 0.01 SOL floor.
	f.emit("sig-small", raydiumLogs(t, 50_000_000))

	waitFor(t, "rejection", func() bool {
		return f.pipeline.Stats().Rejected == 1
	})
	waitFor(t, "rejection notification", func() bool {
		return f.sender.has("Order rejected")
	})

	order, err := f.orders.GetByID(context.Background(), idhash.ComputeOrderID("sig-small", 0))
	if err == nil && order != nil {
		t.Errorf("expected no order for rejected intent, got %+v", order)
	}
}

func TestPipeline_IgnoresNonTradeUpdates(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t)

	f.emit("sig-transfer", []string{"Program 11111111111111111111111111111111 invoke [1]"})
	f.emit("sig-trade", raydiumLogs(t, 2_000_000_000))

	waitFor(t, "trade intent", func() bool {
		intent, err := f.intents.GetBySignature(context.Background(), "sig-trade")
		return err == nil && intent != nil
	})

	if intent, err := f.intents.GetBySignature(context.Background(), "sig-transfer"); err == nil && intent != nil {
		t.Errorf("transfer produced an intent: %+v", intent)
	}
}

func TestPipeline_SharedCacheSuppressesReplays(t *testing.T) {
	cache := &fakeSignatures{seen: map[string]bool{"sig-replayed": true}}
	f := newFixture(t, Options{Signatures: cache})
	f.start(t)

	f.emit("sig-replayed", raydiumLogs(t, 2_000_000_000))
	f.emit("sig-fresh", raydiumLogs(t, 2_000_000_000))

	waitFor(t, "fresh intent", func() bool {
		intent, err := f.intents.GetBySignature(context.Background(), "sig-fresh")
		return err == nil && intent != nil
	})

	if intent, err := f.intents.GetBySignature(context.Background(), "sig-replayed"); err == nil && intent != nil {
		t.Error("replayed signature was traded again")
	}
}

func TestPipeline_PublishesStatsSnapshots(t *testing.T) {
	f := newFixture(t, Options{StatsInterval: 50 * time.Millisecond})
	f.start(t)

	waitFor(t, "stats snapshot", func() bool {
		return f.sender.has("Session stats")
	})
}
