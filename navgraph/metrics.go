package navgraph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	graphBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridless_graph_builds_total",
		Help: "Total navigation graphs built",
	})

	graphBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridless_graph_build_duration_seconds",
		Help:    "Navigation graph construction time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	})

	visibilityTests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridless_visibility_tests_total",
		Help: "Total line-of-sight tests against blocking segments",
	})

	edgeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridless_edge_cache_lookups_total",
		Help: "Shared adjacency cache lookups by result",
	}, []string{"result"}) // "hit" or "miss"
)
