package seiche

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSearchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seiche_search_total",
		Help: "Number of searches executed.",
	})
	metricSearchCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seiche_search_cancelled_total",
		Help: "Number of searches cancelled by the caller.",
	})
	metricSearchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seiche_search_errors_total",
		Help: "Number of searches that failed.",
	})
	metricSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seiche_search_duration_seconds",
		Help:    "Search latency.",
		Buckets: prometheus.DefBuckets,
	})
	metricSearchMatches = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seiche_search_matches",
		Help:    "Matching documents per search.",
		Buckets: prometheus.ExponentialBuckets(1, 10, 8),
	})
)
