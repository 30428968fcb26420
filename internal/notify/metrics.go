package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	DispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidengine_notifications_dispatched_total",
		Help: "Total number of notifications handed to every sink",
	}, []string{"kind"})

	DeliveryFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidengine_notification_delivery_failures_total",
		Help: "Total number of failed sink deliveries",
	}, []string{"kind"})

	DroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidengine_notifications_dropped_total",
		Help: "Total number of notifications dropped because the emitter was closed",
	})
)
