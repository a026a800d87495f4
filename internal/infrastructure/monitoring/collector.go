package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds metrics for the development collector server
type Collector struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	TracesReceived   *prometheus.CounterVec
	Registrations    *prometheus.CounterVec
	MetricsPublished prometheus.Counter

	registry *prometheus.Registry
}

// NewCollector creates collector metrics on a dedicated registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		TracesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_traces_received_total",
				Help: "Traces accepted by payload kind",
			},
			[]string{"kind"},
		),
		Registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_key_registrations_total",
				Help: "Key registration requests by outcome",
			},
			[]string{"result"},
		),
		MetricsPublished: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "collector_public_metrics_total",
				Help: "Public metrics summaries accepted",
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTraces counts accepted traces of one kind ("plain" or "encrypted")
func (m *Collector) RecordTraces(kind string, n int) {
	m.TracesReceived.WithLabelValues(kind).Add(float64(n))
}

// RecordRegistration records a registration outcome
func (m *Collector) RecordRegistration(result string) {
	m.Registrations.WithLabelValues(result).Inc()
}

// Handler serves the registry in Prometheus exposition format
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
