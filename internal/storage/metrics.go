package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ProfileCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_profile_cache_hits_total",
		Help: "Total number of bidder profile lookups served from cache",
	})

	ProfileCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_profile_cache_misses_total",
		Help: "Total number of bidder profile lookups that reached storage",
	})
)
