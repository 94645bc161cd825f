package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to transaction logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// States delivers connection state changes. The channel is buffered and
	// never blocks the client; slow readers miss intermediate states.
	States() <-chan ConnState

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these account addresses.
	Mentions []string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}

// ConnState describes a WebSocket connection state change.
type ConnState struct {
	Connected bool
	// ConsecutiveFailures counts reconnect attempts that have failed since
	// the connection was last up. Zero when Connected is true.
	ConsecutiveFailures int
}
