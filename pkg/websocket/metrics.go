package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ActiveConnections tracks connected notification clients.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bidengine_ws_active_connections",
		Help: "Number of active notification WebSocket connections",
	})

	// MessagesSentTotal tracks messages queued to clients by type.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidengine_ws_messages_sent_total",
			Help: "Total number of WebSocket messages queued to clients",
		},
		[]string{"type"},
	)

	// MessagesDroppedTotal tracks messages dropped because a client fell behind.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidengine_ws_messages_dropped_total",
			Help: "Total number of WebSocket messages dropped",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks WebSocket connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bidengine_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{1, 10, 60, 300, 600, 1800, 3600, 7200, 14400},
	})
)
