package domain

// OrderStatus is the lifecycle state of a TradeOrder.
// Transitions are one-directional:
//
//	CREATED -> SUBMITTED -> {CONFIRMED | FAILED | TIMED_OUT}
//	TIMED_OUT -> {CONFIRMED | FAILED}   (reconciliation only)
//
// CONFIRMED and FAILED are terminal.
type OrderStatus string

// Order status constants
const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusTimedOut  OrderStatus = "TIMED_OUT"
)

// validTransitions enumerates every allowed status edge.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:   {OrderStatusSubmitted},
	OrderStatusSubmitted: {OrderStatusConfirmed, OrderStatusFailed, OrderStatusTimedOut},
	OrderStatusTimedOut:  {OrderStatusConfirmed, OrderStatusFailed},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusFailed
}

// TradeOrder is a sized, policy-applied instruction derived from a
// TradeIntent. Slippage and fee values are captured from runtime config at
// creation time and never re-read, so a mid-flight config change cannot
// alter an existing order.
//
// At most one order exists per (IntentSignature, Generation). A retry after
// terminal failure creates Generation+1 against the same intent.
type TradeOrder struct {
	OrderID             string // idhash.ComputeOrderID(IntentSignature, Generation)
	IntentSignature     string
	Generation          int
	SizedInputAmount    uint64 // minor units
	MaxSlippageBps      int
	PriorityFeeLamports uint64
	Status              OrderStatus
	CreatedAt           int64 // unix ms
}

// RejectionCode classifies why sizing declined to produce an order.
type RejectionCode string

// Sizing rejection codes
const (
	RejectInsufficientBalance RejectionCode = "INSUFFICIENT_BALANCE"
	RejectBelowMinTrade       RejectionCode = "BELOW_MIN_TRADE"
	RejectStaleSnapshot       RejectionCode = "STALE_SNAPSHOT"
	RejectDuplicateIntent     RejectionCode = "DUPLICATE_INTENT"
	RejectUnsupportedMode     RejectionCode = "UNSUPPORTED_MODE"
)

// SizingRejection is the structured, non-error outcome of a sizing decision
// that produced no order.
type SizingRejection struct {
	IntentSignature string
	Code            RejectionCode
	Detail          string
}
