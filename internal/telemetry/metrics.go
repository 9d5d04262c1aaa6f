// Package telemetry holds the process-wide Prometheus collectors and the
// OpenTelemetry tracer setup.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "home_dispatch_commands_total",
			Help: "Commands handled by the dispatcher, by result.",
		},
		[]string{"result"},
	)

	ActionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "home_dispatch_actions_total",
			Help: "Actions requested by the intent resolver, by operation and outcome.",
		},
		[]string{"operation", "status", "reason"},
	)

	ResolverDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "home_dispatch_resolver_duration_seconds",
			Help:    "Latency of intent resolver calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"result"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "home_dispatch_http_requests_total",
			Help: "HTTP requests by route and status code.",
		},
		[]string{"route", "method", "code"},
	)
)

func init() {
	prometheus.MustRegister(DispatchTotal, ActionTotal, ResolverDuration, HTTPRequests)
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
