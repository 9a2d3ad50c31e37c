package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the claim lifecycle.
type Metrics struct {
	// Applied transitions by event kind and resulting state
	Transitions *prometheus.CounterVec

	// Events rejected because they were illegal for the key's current state
	InvalidTransitions *prometheus.CounterVec

	// Registry gateway call latencies by operation and outcome
	GatewayLatency *prometheus.HistogramVec

	// Events routed to the dead-letter channel
	DeadLetters *prometheus.CounterVec

	// Events skipped as idempotent re-deliveries
	Duplicates *prometheus.CounterVec
}

// New creates a Metrics instance with all claim lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keybridge_claim_transitions_total",
			Help: "Applied key state transitions by event kind and resulting state",
		}, []string{"event", "state"}),

		InvalidTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keybridge_claim_invalid_transitions_total",
			Help: "Lifecycle events rejected as illegal for the key's current state",
		}, []string{"event", "state"}),

		GatewayLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "keybridge_registry_call_duration_seconds",
			Help:    "Duration of registry gateway calls by operation and outcome",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "outcome"}),

		DeadLetters: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keybridge_claim_dead_letters_total",
			Help: "Lifecycle events republished to the dead-letter channel",
		}, []string{"event"}),

		Duplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keybridge_claim_duplicate_events_total",
			Help: "Lifecycle events skipped as idempotent re-deliveries",
		}, []string{"event"}),
	}
}

// IncTransition records an applied transition.
func (m *Metrics) IncTransition(event, state string) {
	if m != nil {
		m.Transitions.WithLabelValues(event, state).Inc()
	}
}

// IncInvalid records a rejected transition.
func (m *Metrics) IncInvalid(event, state string) {
	if m != nil {
		m.InvalidTransitions.WithLabelValues(event, state).Inc()
	}
}

// ObserveGateway records one registry call.
func (m *Metrics) ObserveGateway(operation, outcome string, d time.Duration) {
	if m != nil {
		m.GatewayLatency.WithLabelValues(operation, outcome).Observe(d.Seconds())
	}
}

// IncDeadLetter records a dead-letter republish.
func (m *Metrics) IncDeadLetter(event string) {
	if m != nil {
		m.DeadLetters.WithLabelValues(event).Inc()
	}
}

// IncDuplicate records an idempotent skip.
func (m *Metrics) IncDuplicate(event string) {
	if m != nil {
		m.Duplicates.WithLabelValues(event).Inc()
	}
}
