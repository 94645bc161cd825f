// Package executor turns sized orders into on-chain swaps and records their
// fate. Every attempt fetches a fresh quote: a quote that sat through a
// failed attempt is already priced off the market.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-copy-trader/internal/detector"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/sizing"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
	"solana-copy-trader/internal/wallet"
)

// SwapProvider builds swap transactions from quotes.
type SwapProvider interface {
	GetQuote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
	GetSwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey string, priorityFeeLamports uint64) (*jupiter.SwapTransaction, error)
}

// Options configures an Executor.
type Options struct {
	// MaxRetries is how many additional submission attempts follow a failed
	// one. Timeouts never retry; the transaction may still land.
	MaxRetries          int
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
	Logger              *log.Logger
}

// Executor executes orders sequentially.
type Executor struct {
	rpc      solana.RPCClient
	swaps    SwapProvider
	signer   *wallet.Signer
	orders   storage.OrderStore
	results  storage.ResultStore
	balances *sizing.BalanceTracker

	maxRetries   int
	confirmAfter time.Duration
	pollEvery    time.Duration
	logger       *log.Logger
}

// New creates an executor.
func New(rpc solana.RPCClient, swaps SwapProvider, signer *wallet.Signer, orders storage.OrderStore, results storage.ResultStore, balances *sizing.BalanceTracker, opts Options) *Executor {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 30 * time.Second
	}
	if opts.ConfirmPollInterval <= 0 {
		opts.ConfirmPollInterval = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Executor{
		rpc:          rpc,
		swaps:        swaps,
		signer:       signer,
		orders:       orders,
		results:      results,
		balances:     balances,
		maxRetries:   opts.MaxRetries,
		confirmAfter: opts.ConfirmTimeout,
		pollEvery:    opts.ConfirmPollInterval,
		logger:       opts.Logger,
	}
}

// Execute runs an order to a terminal or timed-out outcome and persists the
// result. The returned result mirrors what was stored.
func (e *Executor) Execute(ctx context.Context, intent *domain.TradeIntent, order *domain.TradeOrder) (*domain.ExecutionResult, error) {
	// The order is owned by this executor from here on. SUBMITTED covers the
	// whole attempt sequence; per-attempt detail lives on the result.
	if err := e.orders.UpdateStatus(ctx, order.OrderID, domain.OrderStatusCreated, domain.OrderStatusSubmitted); err != nil {
		return nil, fmt.Errorf("take order %s: %w", order.OrderID, err)
	}

	result := &domain.ExecutionResult{
		OrderID:         order.OrderID,
		IntentSignature: order.IntentSignature,
		SubmittedAt:     time.Now().UTC(),
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		result.Attempts = attempt + 1
		if attempt > 0 {
			e.logger.Printf("executor: order %s attempt %d/%d: %v",
				order.OrderID, attempt+1, e.maxRetries+1, lastErr)
		}

		txSig, ackAt, err := e.submitOnce(ctx, intent, order)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		result.TxSignature = txSig
		if intent.ObservedAtMono > 0 {
			result.LatencyMs = (ackAt - intent.ObservedAtMono) / int64(time.Millisecond)
		}

		outcome, confirmedAt, onChainErr := e.awaitConfirmation(ctx, txSig)
		switch outcome {
		case domain.OutcomeSuccess:
			result.Outcome = domain.OutcomeSuccess
			result.ConfirmedAt = &confirmedAt
			result.RealizedOutputAmount = e.realizedOutput(ctx, txSig, intent.OutputMint)
			return result, e.finish(ctx, order, result, domain.OrderStatusConfirmed)

		case domain.OutcomeTimeout:
			// Not terminal: the transaction may still land. Reconciliation
			// resolves it; retrying now could double-spend.
			result.Outcome = domain.OutcomeTimeout
			reason := fmt.Sprintf("no confirmation within %v", e.confirmAfter)
			result.FailureReason = &reason
			return result, e.finish(ctx, order, result, domain.OrderStatusTimedOut)

		default:
			lastErr = fmt.Errorf("transaction %s failed on-chain: %v", txSig, onChainErr)
		}
	}

	result.Outcome = domain.OutcomeFailed
	reason := "execution failed"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	result.FailureReason = &reason

	if intent.InputMint == detector.WSOL && e.balances != nil {
		e.balances.Release(order.SizedInputAmount)
	}
	return result, e.finish(ctx, order, result, domain.OrderStatusFailed)
}

// submitOnce quotes, builds, signs and sends one transaction. Returns the
// transaction signature and the monotonic acknowledgment time.
func (e *Executor) submitOnce(ctx context.Context, intent *domain.TradeIntent, order *domain.TradeOrder) (string, int64, error) {
	quote, err := e.swaps.GetQuote(ctx, jupiter.QuoteRequest{
		InputMint:   intent.InputMint,
		OutputMint:  intent.OutputMint,
		Amount:      order.SizedInputAmount,
		SlippageBps: order.MaxSlippageBps,
	})
	if err != nil {
		return "", 0, fmt.Errorf("quote: %w", err)
	}

	swap, err := e.swaps.GetSwapTransaction(ctx, quote, e.signer.Address(), order.PriorityFeeLamports)
	if err != nil {
		return "", 0, fmt.Errorf("build swap: %w", err)
	}

	signed, err := e.signer.SignTransaction(swap.SwapTransaction)
	if err != nil {
		return "", 0, fmt.Errorf("sign: %w", err)
	}

	txSig, err := e.rpc.SendTransaction(ctx, signed)
	if err != nil {
		return "", 0, fmt.Errorf("send: %w", err)
	}
	return txSig, time.Now().UnixNano(), nil
}

// awaitConfirmation polls signature status until confirmed, failed on-chain,
// or the confirmation window closes.
func (e *Executor) awaitConfirmation(ctx context.Context, txSig string) (domain.Outcome, time.Time, interface{}) {
	deadline := time.NewTimer(e.confirmAfter)
	defer deadline.Stop()
	ticker := time.NewTicker(e.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.OutcomeTimeout, time.Time{}, nil
		case <-deadline.C:
			return domain.OutcomeTimeout, time.Time{}, nil
		case <-ticker.C:
			statuses, err := e.rpc.GetSignatureStatuses(ctx, []string{txSig})
			if err != nil {
				e.logger.Printf("executor: status poll for %s: %v", txSig, err)
				continue
			}
			if len(statuses) == 0 || statuses[0] == nil {
				continue
			}
			st := statuses[0]
			if st.Err != nil {
				return domain.OutcomeFailed, time.Time{}, st.Err
			}
			if st.Confirmed() {
				return domain.OutcomeSuccess, time.Now().UTC(), nil
			}
		}
	}
}

// realizedOutput reads the actual output amount from the confirmed
// transaction's token balance delta. Nil when the transaction is not yet
// queryable; reporting treats it as unknown rather than guessing.
func (e *Executor) realizedOutput(ctx context.Context, txSig, outputMint string) *uint64 {
	tx, err := e.rpc.GetTransaction(ctx, txSig)
	if err != nil || tx == nil || tx.Meta == nil {
		return nil
	}
	return TokenDelta(tx.Meta, e.signer.Address(), outputMint)
}

// TokenDelta computes post-pre balance change for an owner and mint.
func TokenDelta(meta *solana.TransactionMeta, owner, mint string) *uint64 {
	var pre, post uint64
	var seen bool
	for _, b := range meta.PreTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			pre = b.Amount
		}
	}
	for _, b := range meta.PostTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			post = b.Amount
			seen = true
		}
	}
	if !seen || post < pre {
		return nil
	}
	delta := post - pre
	return &delta
}

// finish advances the order status and stores the result.
func (e *Executor) finish(ctx context.Context, order *domain.TradeOrder, result *domain.ExecutionResult, to domain.OrderStatus) error {
	if err := e.orders.UpdateStatus(ctx, order.OrderID, domain.OrderStatusSubmitted, to); err != nil {
		return fmt.Errorf("advance order %s to %s: %w", order.OrderID, to, err)
	}
	if err := e.results.Insert(ctx, result); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("persist result for %s: %w", order.OrderID, err)
	}
	if result.Outcome == domain.OutcomeSuccess && e.balances != nil {
		// The spend settled; next sizing decision should see the real balance.
		e.balances.Invalidate()
	}
	return nil
}
