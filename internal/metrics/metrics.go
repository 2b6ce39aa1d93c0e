package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinedex_upstream_requests_total",
			Help: "Count of requests sent to the TMDB API",
		},
		[]string{"status"}, // HTTP status code or "error"
	)
	UpstreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cinedex_upstream_request_duration_seconds",
			Help:    "Time taken by TMDB API requests, retries included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinedex_cache_operations_total",
			Help: "Count of cache lookups and writes",
		},
		[]string{"result"}, // hit, miss, set, set_error
	)
	SharedFetches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cinedex_shared_fetches_total",
			Help: "Count of fetches served by joining an in-flight request",
		},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinedex_http_requests_total",
			Help: "Count of API requests served",
		},
		[]string{"operation", "status"},
	)
)

// Init registers all collectors with the default registry.
func Init() {
	prometheus.MustRegister(
		UpstreamRequests,
		UpstreamDuration,
		CacheOperations,
		SharedFetches,
		HTTPRequests,
	)
}
