package domain

// RawUpdate is the provider-independent shape of one feed event. Both the
// streaming and polling paths emit this; downstream stages cannot tell which
// path produced it.
type RawUpdate struct {
	Signature  string
	Slot       int64
	Logs       []string
	Err        interface{} // on-chain error, nil for successful transactions
	ReceivedAt int64       // monotonic nanoseconds at receipt
}

// FeedStatus describes the Feed Client's connection state.
type FeedStatus string

// Feed status constants
const (
	FeedStreaming    FeedStatus = "streaming"
	FeedPolling      FeedStatus = "polling"
	FeedDisconnected FeedStatus = "disconnected"
)

// EventType tags pipeline events pushed to the notifier.
type EventType string

// Notifier event types
const (
	EventIntentCreated   EventType = "intent_created"
	EventOrderSized      EventType = "order_sized"
	EventOrderRejected   EventType = "order_rejected"
	EventExecutionResult EventType = "execution_result"
	EventFeedStatus      EventType = "feed_status"
	EventStatsSnapshot   EventType = "stats_snapshot"
)
