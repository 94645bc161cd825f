// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	UpdatesReceived prometheus.Counter
	UpdatesDropped  prometheus.Counter
	FeedQueueSize   prometheus.Gauge
	FeedState       *prometheus.GaugeVec
	HighestSlotSeen prometheus.Gauge

	// Detector metrics
	IntentsCreated *prometheus.CounterVec
	UpdatesIgnored *prometheus.CounterVec

	// Sizing metrics
	OrdersCreated    prometheus.Counter
	OrdersRejected   *prometheus.CounterVec
	WalletLamports   prometheus.Gauge
	ReservedLamports prometheus.Gauge

	// Execution metrics
	Submissions      prometheus.Counter
	Results          *prometheus.CounterVec
	ExecutionLatency prometheus.Histogram
	ConfirmationWait prometheus.Histogram
	Reconciliations  *prometheus.CounterVec

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec

	// Health metrics
	LastIntentTimestamp prometheus.Gauge
	UptimeSeconds       prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "copytrader"
	}

	return &Metrics{
		// Feed metrics
		UpdatesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "updates_received_total",
			Help:      "Total number of raw updates received from either feed path",
		}),
		UpdatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "updates_dropped_total",
			Help:      "Total number of updates dropped due to queue backpressure",
		}),
		FeedQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "queue_size",
			Help:      "Current number of updates waiting in the feed queue",
		}),
		FeedState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "state",
			Help:      "Feed connection state (1 for the active state, 0 otherwise)",
		}, []string{"state"}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		// Detector metrics
		IntentsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "intents_created_total",
			Help:      "Total number of trade intents created by venue",
		}, []string{"venue"}),
		UpdatesIgnored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "updates_ignored_total",
			Help:      "Total number of updates ignored by reason",
		}, []string{"reason"}),

		// Sizing metrics
		OrdersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sizing",
			Name:      "orders_created_total",
			Help:      "Total number of orders created",
		}),
		OrdersRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sizing",
			Name:      "orders_rejected_total",
			Help:      "Total number of sizing rejections by code",
		}, []string{"code"}),
		WalletLamports: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sizing",
			Name:      "wallet_lamports",
			Help:      "Last observed follower wallet balance in lamports",
		}),
		ReservedLamports: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sizing",
			Name:      "reserved_lamports",
			Help:      "Lamports reserved by in-flight orders",
		}),

		// Execution metrics
		Submissions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "submissions_total",
			Help:      "Total number of transaction submissions",
		}),
		Results: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "results_total",
			Help:      "Total number of execution results by outcome",
		}, []string{"outcome"}),
		ExecutionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "detection_to_ack_seconds",
			Help:      "Latency from intent detection to submission acknowledgment",
			Buckets:   []float64{0.05, 0.1, 0.15, 0.25, 0.5, 1, 5},
		}),
		ConfirmationWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "confirmation_wait_seconds",
			Help:      "Time from submission to observed confirmation",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30},
		}),
		Reconciliations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "reconciliations_total",
			Help:      "Total number of timed-out orders resolved by final outcome",
		}, []string{"outcome"}),

		// RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Health metrics
		LastIntentTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_intent_timestamp",
			Help:      "Unix timestamp of the last detected intent",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// SetFeedState marks one feed state active and the others inactive.
func (m *Metrics) SetFeedState(active string) {
	for _, state := range []string{"streaming", "polling", "disconnected"} {
		v := 0.0
		if state == active {
			v = 1.0
		}
		m.FeedState.WithLabelValues(state).Set(v)
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")
