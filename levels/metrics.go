package levels

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridless_level_cache_lookups_total",
		Help: "Level graph cache lookups by result",
	}, []string{"result"})

	cacheResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridless_level_cache_resets_total",
		Help: "Number of times the wall set was replaced",
	})

	cachedGraphs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridless_level_cache_graphs",
		Help: "Graphs currently held by the level cache",
	})
)
