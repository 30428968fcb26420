package fraud

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RiskScore tracks the distribution of computed risk scores.
	RiskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bidengine_fraud_risk_score",
		Help:    "Fraud risk score of screened bids",
		Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 80, 100, 135},
	})

	// FraudulentTotal tracks bids classified as fraudulent.
	FraudulentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_fraud_flagged_total",
		Help: "Total number of bids flagged as fraudulent",
	})

	// FailOpenTotal tracks screenings skipped because a data source was unavailable.
	FailOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_fraud_fail_open_total",
		Help: "Total number of fraud checks that failed open",
	})
)
