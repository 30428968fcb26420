package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConflictsTotal tracks attempts that lost an optimistic-concurrency race.
	ConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_retry_conflicts_total",
		Help: "Total number of attempts that ended in a retryable conflict",
	})

	// RecoveredTotal tracks operations that succeeded after at least one conflict.
	RecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_retry_recovered_total",
		Help: "Total number of operations that succeeded after retrying",
	})

	// ExhaustedTotal tracks operations that ran out of attempts.
	ExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_retry_exhausted_total",
		Help: "Total number of operations that exhausted all retry attempts",
	})
)
