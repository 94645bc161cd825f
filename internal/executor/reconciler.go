package executor

import (
	"context"
	"errors"
	"log"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
)

const reconcileBatch = 50

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Interval time.Duration
	// Expiry is how long an unobserved timed-out transaction is given before
	// it is written off as failed.
	Expiry time.Duration
	Logger *log.Logger
}

// Reconciler resolves timed-out orders in the background. A timeout means
// "confirmation not observed", not "did not happen": the transaction may have
// landed after the executor stopped watching.
type Reconciler struct {
	rpc     solana.RPCClient
	orders  storage.OrderStore
	results storage.ResultStore

	interval time.Duration
	expiry   time.Duration
	logger   *log.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(rpc solana.RPCClient, orders storage.OrderStore, results storage.ResultStore, opts ReconcilerOptions) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.Expiry <= 0 {
		opts.Expiry = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Reconciler{
		rpc:      rpc,
		orders:   orders,
		results:  results,
		interval: opts.Interval,
		expiry:   opts.Expiry,
		logger:   opts.Logger,
	}
}

// Run reconciles on a fixed interval until the context is canceled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Printf("reconciler: sweep failed: %v", err)
			}
		}
	}
}

// Sweep resolves every pending timeout it can and returns the first storage
// error. Per-order RPC failures are logged and skipped; the next sweep
// retries them.
func (r *Reconciler) Sweep(ctx context.Context) error {
	pending, err := r.results.GetByOutcome(ctx, domain.OutcomeTimeout, reconcileBatch)
	if err != nil {
		return err
	}

	for _, res := range pending {
		if err := r.resolve(ctx, res); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.logger.Printf("reconciler: order %s: %v", res.OrderID, err)
		}
	}
	return nil
}

func (r *Reconciler) resolve(ctx context.Context, res *domain.ExecutionResult) error {
	if res.TxSignature == "" {
		// Nothing was ever sent; the timeout can only be a failure.
		return r.close(ctx, res, domain.OutcomeFailed, time.Now().UTC(), nil)
	}

	statuses, err := r.rpc.GetSignatureStatuses(ctx, []string{res.TxSignature})
	if err != nil {
		return err
	}

	var st *solana.SignatureStatus
	if len(statuses) > 0 {
		st = statuses[0]
	}

	switch {
	case st == nil:
		// Unknown to the cluster. Give it the expiry window, then write off.
		if time.Since(res.SubmittedAt) > r.expiry {
			r.logger.Printf("reconciler: %s unobserved for %v, closing as failed",
				res.TxSignature, r.expiry)
			return r.close(ctx, res, domain.OutcomeFailed, time.Now().UTC(), nil)
		}
		return nil

	case st.Err != nil:
		return r.close(ctx, res, domain.OutcomeFailed, time.Now().UTC(), nil)

	case st.Confirmed():
		realized := r.realized(ctx, res)
		return r.close(ctx, res, domain.OutcomeSuccess, time.Now().UTC(), realized)

	default:
		// Processed but not yet confirmed; check again next sweep.
		return nil
	}
}

func (r *Reconciler) realized(ctx context.Context, res *domain.ExecutionResult) *uint64 {
	tx, err := r.rpc.GetTransaction(ctx, res.TxSignature)
	if err != nil || tx == nil || tx.Meta == nil {
		return nil
	}
	// The intent's output mint is not on the result; take the largest
	// positive token delta, which for a single swap is the output leg.
	var best *uint64
	seen := map[string]uint64{}
	for _, b := range tx.Meta.PreTokenBalances {
		seen[b.Mint+"|"+b.Owner] = b.Amount
	}
	for _, b := range tx.Meta.PostTokenBalances {
		pre := seen[b.Mint+"|"+b.Owner]
		if b.Amount > pre {
			delta := b.Amount - pre
			if best == nil || delta > *best {
				best = &delta
			}
		}
	}
	return best
}

// close flips the stored timeout to its final outcome and advances the order.
// ResultStore.Reconcile is the idempotency gate: it succeeds exactly once.
func (r *Reconciler) close(ctx context.Context, res *domain.ExecutionResult, outcome domain.Outcome, confirmedAt time.Time, realized *uint64) error {
	if err := r.results.Reconcile(ctx, res.OrderID, outcome, confirmedAt, realized); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	to := domain.OrderStatusFailed
	if outcome == domain.OutcomeSuccess {
		to = domain.OrderStatusConfirmed
	}
	if err := r.orders.UpdateStatus(ctx, res.OrderID, domain.OrderStatusTimedOut, to); err != nil && !errors.Is(err, storage.ErrInvalidTransition) {
		return err
	}

	r.logger.Printf("reconciler: order %s resolved %s -> %s", res.OrderID, domain.OutcomeTimeout, outcome)
	return nil
}
