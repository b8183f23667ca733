// Package metrics exposes Prometheus collectors for the tracker API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// AuthEvents counts register, login, refresh and logout outcomes.
	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_auth_events_total",
			Help: "Total number of authentication events",
		},
		[]string{"event", "outcome"},
	)
	// OperationsTotal counts project, member, label and task mutations.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_operations_total",
			Help: "Total number of domain operations",
		},
		[]string{"operation", "status"},
	)
)

// ObserveAuth records the outcome of an authentication event.
func ObserveAuth(event string, err error) {
	AuthEvents.WithLabelValues(event, outcome(err)).Inc()
}

// ObserveOperation records the outcome of a domain operation.
func ObserveOperation(operation string, err error) {
	OperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
