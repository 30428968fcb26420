package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	BidsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_bids_submitted_total",
		Help: "Total number of bid submissions",
	})

	BidsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_bids_accepted_total",
		Help: "Total number of bids that became the accepted bid of their lot",
	})

	BidsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidengine_bids_rejected_total",
		Help: "Total number of bid submissions that were not accepted, by reason",
	}, []string{"reason"})

	AttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_arbitration_attempts_total",
		Help: "Total number of read-decide-commit attempts",
	})

	PlaceBidDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bidengine_place_bid_duration_seconds",
		Help:    "Time to resolve a bid submission, including retries",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
)
