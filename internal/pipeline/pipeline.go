// Package pipeline wires the stages of the copy trader together: feed
// updates flow through detection, sizing, and execution, with results fanned
// out to stats, metrics, notifications, and the optional analytics sink.
// Executions run concurrently; everything before them is single-threaded so
// intents keep their observed order.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-copy-trader/internal/detector"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/executor"
	"solana-copy-trader/internal/feed"
	"solana-copy-trader/internal/notify"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/sizing"
	"solana-copy-trader/internal/stats"
)

// SignatureCache is an optional cross-process dedup layer checked before the
// in-process detector dedup. Implemented by cache/redis.SignatureCache.
type SignatureCache interface {
	// Seen marks the signature and reports whether it was already present.
	Seen(ctx context.Context, signature string) (bool, error)
}

// MetricsSink receives one row per finished execution. Implemented by
// storage/clickhouse.ExecutionMetricsStore.
type MetricsSink interface {
	Append(ctx context.Context, r *domain.ExecutionResult, inputAmount uint64, outputMint string) error
}

// Options configures a Pipeline.
type Options struct {
	// Optional cross-process dedup. Nil disables the check.
	Signatures SignatureCache
	// Optional analytics sink. Nil disables it.
	Sink MetricsSink
	// Metrics defaults to observability.DefaultMetrics.
	Metrics *observability.Metrics
	// StatsInterval is the cadence of stats_snapshot notifications.
	// Defaults to an hour.
	StatsInterval time.Duration
	Logger        *log.Logger
}

// Pipeline owns the trade processing loop.
type Pipeline struct {
	feed       *feed.Client
	detector   *detector.Detector
	engine     *sizing.Engine
	executor   *executor.Executor
	reconciler *executor.Reconciler
	notifier   *notify.Notifier
	agg        *stats.Aggregator

	signatures SignatureCache
	sink       MetricsSink
	metrics    *observability.Metrics
	statsEvery time.Duration
	logger     *log.Logger

	// executions outlive the intake loop; shutdown waits for them.
	inflight sync.WaitGroup
}

// New creates a Pipeline from fully constructed stages.
func New(f *feed.Client, d *detector.Detector, eng *sizing.Engine, exec *executor.Executor, rec *executor.Reconciler, n *notify.Notifier, opts Options) *Pipeline {
	if opts.Metrics == nil {
		opts.Metrics = observability.DefaultMetrics
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Pipeline{
		feed:       f,
		detector:   d,
		engine:     eng,
		executor:   exec,
		reconciler: rec,
		notifier:   n,
		agg:        stats.NewAggregator(),
		signatures: opts.Signatures,
		sink:       opts.Sink,
		metrics:    opts.Metrics,
		statsEvery: opts.StatsInterval,
		logger:     opts.Logger,
	}
}

// Stats returns a snapshot of the session aggregates.
func (p *Pipeline) Stats() domain.SessionStats {
	return p.agg.Snapshot()
}

// Run starts every stage and blocks until ctx is cancelled or a stage fails.
// On cancellation the intake loop stops first, in-flight executions finish,
// and a final reconcile sweep runs before Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	// Restart recovery: the dedup set must cover signatures traded before
	// the process died, or the feed replay re-trades them.
	if err := p.detector.SeedFromStore(ctx); err != nil {
		return fmt.Errorf("pipeline start: %w", err)
	}

	parent := ctx
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.feed.Run(ctx) })
	g.Go(func() error { return p.reconciler.Run(ctx) })
	g.Go(func() error { return p.notifier.Run(ctx) })
	g.Go(func() error { return p.watchStatus(ctx) })
	g.Go(func() error { return p.telemetry(ctx) })
	g.Go(func() error { return p.intake(ctx) })

	err := g.Wait()
	p.inflight.Wait()
	p.finalSweep()

	if err != nil && parent.Err() != nil {
		// Cancellation is a clean shutdown, not a failure.
		return nil
	}
	return err
}

// intake is the single-threaded head of the pipeline.
func (p *Pipeline) intake(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-p.feed.Updates():
			if !ok {
				return nil
			}
			p.handleUpdate(ctx, raw)
		}
	}
}

func (p *Pipeline) handleUpdate(ctx context.Context, raw *domain.RawUpdate) {
	p.metrics.UpdatesReceived.Inc()
	p.metrics.HighestSlotSeen.Set(float64(raw.Slot))

	if p.duplicateAcrossProcesses(ctx, raw.Signature) {
		p.ack(ctx, raw)
		return
	}

	intent, err := p.detector.Process(ctx, raw)
	if err != nil {
		// Storage failure. The update is not acked so a restart replays it.
		p.logger.Printf("process %s: %v", raw.Signature, err)
		return
	}
	if intent == nil {
		p.metrics.UpdatesIgnored.WithLabelValues("not_a_trade").Inc()
		p.ack(ctx, raw)
		return
	}

	p.metrics.IntentsCreated.WithLabelValues(string(intent.Venue)).Inc()
	p.metrics.LastIntentTimestamp.SetToCurrentTime()
	p.notifier.Publish(notify.Event{
		Type:    domain.EventIntentCreated,
		Title:   "Trade detected",
		Message: fmt.Sprintf("%s %s on %s, source amount %d", intent.Direction, intent.InputMint, intent.Venue, intent.InputAmount),
	})

	order, rejection, err := p.engine.Size(ctx, intent, 0)
	if err != nil {
		p.logger.Printf("size %s: %v", intent.RawSignature, err)
		return
	}
	if rejection != nil {
		p.agg.AddRejection()
		p.metrics.OrdersRejected.WithLabelValues(string(rejection.Code)).Inc()
		p.notifier.Publish(notify.Event{
			Type:    domain.EventOrderRejected,
			Title:   "Order rejected",
			Message: notify.FormatRejection(rejection),
		})
		p.ack(ctx, raw)
		return
	}

	p.metrics.OrdersCreated.Inc()
	p.notifier.Publish(notify.Event{
		Type:    domain.EventOrderSized,
		Title:   "Order sized",
		Message: fmt.Sprintf("order %s: %d of %d", order.OrderID, order.SizedInputAmount, intent.InputAmount),
	})

	// Execution confirms on-chain and can take tens of seconds. It must not
	// block the next update, so it runs off the intake goroutine. The
	// context is detached: a shutdown must not abandon a transaction that
	// may already be in flight.
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		execCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		p.execute(execCtx, intent, order)
	}()

	p.ack(ctx, raw)
}

// duplicateAcrossProcesses consults the shared signature cache when one is
// configured. Cache errors fail open: the in-process dedup and the order
// store's duplicate key still stand between a replayed signature and a
// double trade.
func (p *Pipeline) duplicateAcrossProcesses(ctx context.Context, signature string) bool {
	if p.signatures == nil {
		return false
	}
	seen, err := p.signatures.Seen(ctx, signature)
	if err != nil {
		p.logger.Printf("signature cache %s: %v", signature, err)
		return false
	}
	if seen {
		p.metrics.UpdatesIgnored.WithLabelValues("duplicate").Inc()
	}
	return seen
}

func (p *Pipeline) execute(ctx context.Context, intent *domain.TradeIntent, order *domain.TradeOrder) {
	p.metrics.Submissions.Inc()

	result, err := p.executor.Execute(ctx, intent, order)
	if err != nil {
		p.logger.Printf("execute %s: %v", order.OrderID, err)
		return
	}

	p.agg.AddResult(result, intent, order)
	p.metrics.Results.WithLabelValues(string(result.Outcome)).Inc()
	if result.TxSignature != "" {
		p.metrics.ExecutionLatency.Observe(float64(result.LatencyMs) / 1000)
	}

	p.notifier.Publish(notify.Event{
		Type:    domain.EventExecutionResult,
		Title:   "Execution " + string(result.Outcome),
		Message: notify.FormatResult(result),
	})

	if p.sink != nil {
		if err := p.sink.Append(ctx, result, order.SizedInputAmount, intent.OutputMint); err != nil {
			p.logger.Printf("metrics sink %s: %v", order.OrderID, err)
		}
	}
}

// watchStatus mirrors feed connection state into metrics and notifications.
func (p *Pipeline) watchStatus(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case status, ok := <-p.feed.Status():
			if !ok {
				return nil
			}
			p.metrics.SetFeedState(string(status))
			p.logger.Printf("feed status: %s", status)
			p.notifier.Publish(notify.Event{
				Type:    domain.EventFeedStatus,
				Title:   "Feed " + string(status),
				Message: fmt.Sprintf("feed switched to %s", status),
			})
		}
	}
}

// telemetry samples queue depth and uptime once a second and publishes a
// periodic stats snapshot.
func (p *Pipeline) telemetry(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	statsTicker := time.NewTicker(p.statsEvery)
	defer statsTicker.Stop()

	var lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.metrics.FeedQueueSize.Set(float64(len(p.feed.Updates())))
			p.metrics.UptimeSeconds.Inc()
			if d := p.feed.Dropped(); d > lastDropped {
				p.metrics.UpdatesDropped.Add(float64(d - lastDropped))
				lastDropped = d
			}
		case <-statsTicker.C:
			p.notifier.Publish(notify.Event{
				Type:    domain.EventStatsSnapshot,
				Title:   "Session stats",
				Message: notify.FormatStats(p.agg.Snapshot()),
			})
		}
	}
}

// ack persists the feed checkpoint after an update is fully handled.
func (p *Pipeline) ack(ctx context.Context, raw *domain.RawUpdate) {
	if err := p.feed.Ack(ctx, raw.Signature, raw.Slot); err != nil {
		p.logger.Printf("ack %s: %v", raw.Signature, err)
	}
}

// finalSweep gives timed-out orders one last reconciliation attempt on the
// way down. Best effort with its own deadline; the run context is already
// cancelled here.
func (p *Pipeline) finalSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.reconciler.Sweep(ctx); err != nil {
		p.logger.Printf("final reconcile sweep: %v", err)
	}
}
