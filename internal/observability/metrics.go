package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PositionUpdatesTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "bus_tracking", Name: "position_updates_total", Help: "Total accepted bus position writes"})
	PositionWriteFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "bus_tracking", Name: "position_write_failures_total", Help: "Total failed bus position writes"})
	StalePositionWrites   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "bus_tracking", Name: "stale_position_writes_total", Help: "Total position writes rejected as out of order"})

	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bus_tracking", Name: "status_transitions_total", Help: "Total bus status transitions applied"},
		[]string{"status"},
	)

	NotificationsSentTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "bus_tracking", Name: "notifications_sent_total", Help: "Total notification rows inserted"})
	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "bus_tracking", Name: "notifications_failed_total", Help: "Total notification inserts that failed"})

	RiderSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "bus_tracking", Name: "rider_sessions_active", Help: "Connected rider websocket sessions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "bus_tracking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bus_tracking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
