// Package observability provides Prometheus metrics for the panelboard server.
//
// Metrics are registered on a private registry so that tests and multiple
// servers in one process never collide on the default registry. All methods
// are safe on a nil *Metrics, which records nothing.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all metrics
const metricsNamespace = "panelboard"

// Mutation results recorded by ObserveMutation.
const (
	ResultSuccess  = "success"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts HTTP requests.
	// Labels: method, route (chi pattern), status
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures HTTP handler latency.
	// Labels: method, route
	RequestDurationSeconds *prometheus.HistogramVec

	// MutationsTotal counts document mutations.
	// Labels: operation (update_parameter, create_panel, ...), result
	MutationsTotal *prometheus.CounterVec

	// Panels tracks the number of stored panels.
	Panels prometheus.Gauge
}

// NewMetrics creates the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by method and route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		MutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "document",
				Name:      "mutations_total",
				Help:      "Total document mutations by operation and result",
			},
			[]string{"operation", "result"},
		),

		Panels: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "document",
				Name:      "panels",
				Help:      "Number of stored panels",
			},
		),
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveMutation records the outcome of one document mutation.
func (m *Metrics) ObserveMutation(operation, result string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(operation, result).Inc()
}

// SetPanelCount updates the panel gauge.
func (m *Metrics) SetPanelCount(n int) {
	if m == nil {
		return
	}
	m.Panels.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
