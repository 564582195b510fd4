package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vibe30_client",
			Name:      "request_duration_seconds",
			Help:      "Latency of bucket API requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	writesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vibe30_client",
			Name:      "writes_failed_total",
			Help:      "Queued writes that finally failed.",
		},
		[]string{"op"},
	)
)
