package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bazarsearch",
			Name:      "search_duration_seconds",
			Help:      "Search request duration in seconds (embed + rank)",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	SearchCandidatesScanned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bazarsearch",
			Name:      "search_candidates_scanned",
			Help:      "Candidate snapshot size per search",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	SearchExcludedByDistanceTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bazarsearch",
			Name:      "search_excluded_by_distance_total",
			Help:      "Candidates dropped by the max-distance cutoff",
		},
	)

	SearchDimMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bazarsearch",
			Name:      "search_dim_mismatch_total",
			Help:      "Embedding length mismatches silently scored as zero similarity",
		},
	)

	SearchDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bazarsearch",
			Name:      "search_degraded_total",
			Help:      "Searches ranked without a query embedding (provider failure)",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchCandidatesScanned)
	prometheus.MustRegister(SearchExcludedByDistanceTotal)
	prometheus.MustRegister(SearchDimMismatchTotal)
	prometheus.MustRegister(SearchDegradedTotal)
	searchMetricsRegistered = true
}
