// Package metrics provides Prometheus metrics for commit-board.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache outcomes recorded by RecordCacheOutcome.
const (
	OutcomeHit     = "hit"
	OutcomeRefresh = "refresh"
	OutcomeStale   = "stale"
	OutcomeError   = "error"
)

var (
	// CacheRequestsTotal counts team cache lookups by outcome.
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commitboard",
			Name:      "cache_requests_total",
			Help:      "Total number of team cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// AggregationDuration measures full aggregation runs.
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "commitboard",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of organization aggregation runs in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// UpstreamRequestsTotal counts GitHub API calls by endpoint and status code.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commitboard",
			Name:      "upstream_requests_total",
			Help:      "Total number of GitHub API requests",
		},
		[]string{"endpoint", "status"},
	)

	// Repositories tracks the repository count of the last aggregation.
	Repositories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "commitboard",
			Name:      "repositories",
			Help:      "Number of repositories seen by the last aggregation",
		},
	)
)

// RecordCacheOutcome records one team cache lookup.
func RecordCacheOutcome(outcome string) {
	CacheRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpstream records one GitHub API call. A zero status means the
// request never produced a response.
func RecordUpstream(endpoint string, status int) {
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequestsTotal.WithLabelValues(endpoint, label).Inc()
}

// RecordAggregation records a completed aggregation run.
func RecordAggregation(seconds float64, repositories int) {
	AggregationDuration.Observe(seconds)
	Repositories.Set(float64(repositories))
}
