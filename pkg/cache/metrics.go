package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Operations counts persistent cache operations by result
	// (hit, miss, expired, malformed, ok, error).
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookgraph_cache_operations_total",
			Help: "Total number of persistent cache operations",
		},
		[]string{"op", "result"},
	)

	// Evictions counts capacity evictions of the recommendation cache.
	Evictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookgraph_recommendation_cache_evictions_total",
			Help: "Entries evicted from the in-memory recommendation cache",
		},
	)
)

func init() {
	prometheus.MustRegister(Operations)
	prometheus.MustRegister(Evictions)
}
