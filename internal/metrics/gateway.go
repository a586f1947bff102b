package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dicomgw"

// Gateway Prometheus metrics.
var (
	FindRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "find_requests_total",
			Help:      "Total number of C-FIND requests sent to the archive",
		},
		[]string{"level", "result"}, // result: "ok" / "error" / "rejected"
	)

	FindDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "find_duration_seconds",
			Help:      "C-FIND round-trip duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"level"},
	)

	RetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Total number of series retrievals from the archive",
		},
		[]string{"result"}, // "ok" / "error"
	)

	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Series retrieval duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	RetrievalCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_coalesced_total",
			Help:      "Requests that waited on an in-flight retrieval instead of starting one",
		},
	)

	InflightRetrievals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_retrievals",
			Help:      "Series retrievals currently in progress",
		},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Local object cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Study directories removed by the eviction sweep",
		},
	)
)

var registerOnce sync.Once

// RegisterGatewayMetrics registers gateway metrics. Must be called once from main.
func RegisterGatewayMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			FindRequestsTotal,
			FindDuration,
			RetrievalsTotal,
			RetrievalDuration,
			RetrievalCoalescedTotal,
			InflightRetrievals,
			CacheLookupsTotal,
			CacheEvictionsTotal,
		)
	})
}
