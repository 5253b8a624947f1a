package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// GraphLoads counts graph loads by where the applied snapshot came from
	// (remote, cache, none).
	GraphLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookgraph_graph_loads_total",
			Help: "Total number of graph loads by source",
		},
		[]string{"source"},
	)

	// GraphNodes tracks the node count of the current snapshot.
	GraphNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookgraph_graph_nodes",
			Help: "Number of nodes in the current graph snapshot",
		},
	)

	// LibraryBooks tracks the size of the library.
	LibraryBooks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookgraph_library_books",
			Help: "Number of books in the library",
		},
	)

	// IntegrityErrors counts skipped entities by violation kind.
	IntegrityErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookgraph_integrity_errors_total",
			Help: "Data integrity violations found in remote graph data",
		},
		[]string{"kind"},
	)

	// RecommendationFetches counts recommendation fetches by source
	// (remote, saved, memory, persistent, none).
	RecommendationFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookgraph_recommendation_fetches_total",
			Help: "Total number of recommendation fetches by source",
		},
		[]string{"source"},
	)

	// BackendHealthy is 1 when the last health check passed, 0 otherwise.
	BackendHealthy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookgraph_backend_healthy",
			Help: "Whether the remote backend passed its last health check",
		},
	)
)

func init() {
	prometheus.MustRegister(GraphLoads)
	prometheus.MustRegister(GraphNodes)
	prometheus.MustRegister(LibraryBooks)
	prometheus.MustRegister(IntegrityErrors)
	prometheus.MustRegister(RecommendationFetches)
	prometheus.MustRegister(BackendHealthy)
}
