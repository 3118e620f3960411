package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection Metrics
var (
	// ConnectionsCurrent tracks live WebSocket connections held by the hub
	ConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_current",
			Help: "Current number of live WebSocket connections",
		},
	)

	// SlowClientsDropped tracks connections dropped because their send buffer was full
	SlowClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_slow_clients_dropped_total",
			Help: "Total connections dropped due to a full send buffer",
		},
	)

	// InboundRateLimited tracks inbound frames dropped by the per-connection limiter
	InboundRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_inbound_rate_limited_total",
			Help: "Total inbound frames dropped by the per-connection rate limiter",
		},
	)
)

// Event Metrics
var (
	// EventsDelivered tracks outbound events handed to the hub by event type
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_delivered_total",
			Help: "Total outbound events routed to connections by event type",
		},
		[]string{"event"},
	)

	// ActionsTotal tracks inbound actions by type and result
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_actions_total",
			Help: "Total inbound actions by type and result (ok/rejected/error)",
		},
		[]string{"action", "result"},
	)
)

// Scheduler Metrics
var (
	// SweepClaims tracks messages claimed by each lifecycle sweep
	SweepClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sweep_claims_total",
			Help: "Total messages claimed by lifecycle sweeps (expiry/dispatch)",
		},
		[]string{"sweep"},
	)

	// SweepDuration tracks the wall time of one sweep pass
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_sweep_duration_seconds",
			Help:    "Lifecycle sweep duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"sweep"},
	)
)

// Action results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)
