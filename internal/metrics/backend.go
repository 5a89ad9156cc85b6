package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wafi",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Requests sent to the submissions backend.",
		},
		[]string{"method", "status"},
	)

	tokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wafi",
			Subsystem: "backend",
			Name:      "token_refresh_total",
			Help:      "Access token refresh attempts by result.",
		},
		[]string{"result"},
	)
)

// ObserveBackendRequest counts one backend round-trip. status is "error" for
// transport failures.
func ObserveBackendRequest(method, status string) {
	backendRequestsTotal.WithLabelValues(method, status).Inc()
}

// ObserveTokenRefresh counts one refresh attempt; result is "ok" or "failed".
func ObserveTokenRefresh(result string) {
	tokenRefreshTotal.WithLabelValues(result).Inc()
}
