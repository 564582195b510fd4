package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibe30",
		Subsystem: "buckets",
		Name:      "operations_total",
		Help:      "Bucket service operations by outcome.",
	}, []string{"op", "outcome"})

	operationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vibe30",
		Subsystem: "buckets",
		Name:      "operation_duration_seconds",
		Help:      "Latency of bucket service operations including persistence round-trips.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	compensationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vibe30",
		Subsystem: "buckets",
		Name:      "create_compensations_total",
		Help:      "Bucket rows deleted after a failed activity insert.",
	})

	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vibe30",
		Subsystem: "events",
		Name:      "total",
		Help:      "Domain events by kind and result (published, dropped, delivered, failed).",
	}, []string{"kind", "result"})
)

func init() {
	prometheus.MustRegister(operationsTotal, operationSeconds, compensationsTotal, eventsTotal)
}

// Outcome labels an operation result for metrics.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeUnauth      Outcome = "unauthenticated"
	OutcomeUnavailable Outcome = "persistence_error"
)

// ObserveOperation records one service call that started at start.
func ObserveOperation(op string, outcome Outcome, start time.Time) {
	operationsTotal.WithLabelValues(op, string(outcome)).Inc()
	operationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func RecordCompensation() { compensationsTotal.Inc() }

// RecordEvent counts an event transition; result is one of published,
// dropped, delivered or failed.
func RecordEvent(kind, result string) {
	eventsTotal.WithLabelValues(kind, result).Inc()
}
