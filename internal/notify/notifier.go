// Package notify fans pipeline events out to notification channels. Delivery
// is asynchronous behind a bounded queue: a slow or failing channel can never
// hold up trade processing, only cost notifications.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"solana-copy-trader/internal/domain"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the sender in logs.
	Name() string
}

// Event is one notification.
type Event struct {
	Type    domain.EventType
	Title   string
	Message string
}

// Notifier queues events and dispatches them to all senders. Events not in
// the allowed set are dropped; an empty set allows everything.
type Notifier struct {
	senders []Sender
	allowed map[domain.EventType]bool
	queue   chan Event
	logger  *log.Logger

	mu      sync.Mutex
	dropped uint64
}

// Options configures a Notifier.
type Options struct {
	// Events restricts delivery to these types. Empty allows all.
	Events    []string
	QueueSize int
	Logger    *log.Logger
}

// New creates a notifier for the given senders.
func New(senders []Sender, opts Options) *Notifier {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	allowed := make(map[domain.EventType]bool, len(opts.Events))
	for _, e := range opts.Events {
		allowed[domain.EventType(strings.TrimSpace(e))] = true
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		queue:   make(chan Event, opts.QueueSize),
		logger:  opts.Logger,
	}
}

// Publish enqueues an event without blocking. Filtered and overflow events
// are dropped.
func (n *Notifier) Publish(e Event) {
	if len(n.allowed) > 0 && !n.allowed[e.Type] {
		return
	}
	select {
	case n.queue <- e:
	default:
		n.mu.Lock()
		n.dropped++
		dropped := n.dropped
		n.mu.Unlock()
		n.logger.Printf("notify: queue full, dropped %s event (%d total)", e.Type, dropped)
	}
}

// Dropped returns how many events were discarded due to backpressure.
func (n *Notifier) Dropped() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// Run dispatches queued events until the context is canceled, then drains
// whatever is already queued.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n.drain()
			return ctx.Err()
		case e := <-n.queue:
			n.dispatch(ctx, e)
		}
	}
}

// drain delivers queued events with a background context after shutdown.
func (n *Notifier) drain() {
	for {
		select {
		case e := <-n.queue:
			n.dispatch(context.Background(), e)
		default:
			return
		}
	}
}

// dispatch sends one event to every sender. A failing sender does not stop
// delivery to the others.
func (n *Notifier) dispatch(ctx context.Context, e Event) {
	for _, s := range n.senders {
		if err := s.Send(ctx, e.Title, e.Message); err != nil {
			n.logger.Printf("notify: %s failed for %s: %v", s.Name(), e.Type, err)
		}
	}
}

// FormatResult renders an execution result event body.
func FormatResult(res *domain.ExecutionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "order %s: %s", res.OrderID, res.Outcome)
	if res.TxSignature != "" {
		fmt.Fprintf(&b, "\ntx %s (%d ms, %d attempts)", res.TxSignature, res.LatencyMs, res.Attempts)
	}
	if res.RealizedOutputAmount != nil {
		fmt.Fprintf(&b, "\nrealized %d", *res.RealizedOutputAmount)
	}
	if res.FailureReason != nil {
		fmt.Fprintf(&b, "\nreason: %s", *res.FailureReason)
	}
	return b.String()
}

// FormatRejection renders a sizing rejection event body.
func FormatRejection(rej *domain.SizingRejection) string {
	return fmt.Sprintf("intent %s rejected: %s (%s)", rej.IntentSignature, rej.Code, rej.Detail)
}

// FormatStats renders a session stats snapshot event body.
func FormatStats(s domain.SessionStats) string {
	return fmt.Sprintf(
		"%d executed: %d confirmed, %d failed, %d timed out, %d rejected\navg latency %.0f ms, max %d ms, %d within budget",
		s.Attempts, s.Successes, s.Failures, s.Timeouts, s.Rejected,
		s.AvgLatencyMs, s.MaxLatencyMs, s.WithinBudget,
	)
}
