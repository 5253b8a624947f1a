package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestsTotal counts remote calls by operation and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookgraph_gateway_requests_total",
			Help: "Total number of remote backend requests",
		},
		[]string{"operation", "outcome"},
	)

	// RequestDuration tracks remote call latency.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookgraph_gateway_request_duration_seconds",
			Help:    "Latency of remote backend requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// BreakerState is 0 when closed, 1 when half-open and 2 when open.
	BreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookgraph_gateway_breaker_state",
			Help: "Circuit breaker state of the remote backend (0 closed, 1 half-open, 2 open)",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(BreakerState)
}
