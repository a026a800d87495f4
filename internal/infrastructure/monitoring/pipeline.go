package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flush triggers
const (
	TriggerBatch    = "batch"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
	TriggerShutdown = "shutdown"
)

// Pipeline holds the tracer and transport metrics
type Pipeline struct {
	SpansCompleted   *prometheus.CounterVec
	BufferOverwrites prometheus.Counter
	BufferSize       prometheus.Gauge
	Flushes          *prometheus.CounterVec
	Chunks           *prometheus.CounterVec
	DeliveryAttempts prometheus.Counter
	DeliveryDuration prometheus.Histogram
	Encryptions      *prometheus.CounterVec
	KeyRegistrations *prometheus.CounterVec
	BreakerState     prometheus.Gauge

	// Resolved once, the span hot path must not hash label values
	spanSuccess prometheus.Counter
	spanError   prometheus.Counter
	chunkSent   prometheus.Counter
	chunkFailed prometheus.Counter
}

// NewPipeline registers pipeline metrics with reg. A nil reg uses a
// private registry so several tracers can live in one process.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Pipeline{
		SpansCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracex_spans_completed_total",
				Help: "Total number of completed spans",
			},
			[]string{"status"},
		),
		BufferOverwrites: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tracex_buffer_overwrites_total",
				Help: "Spans evicted from a full buffer before they were flushed",
			},
		),
		BufferSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracex_buffer_size",
				Help: "Spans currently buffered",
			},
		),
		Flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracex_flushes_total",
				Help: "Total number of non-empty flushes",
			},
			[]string{"trigger"},
		),
		Chunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracex_chunks_total",
				Help: "Total number of chunk deliveries by outcome",
			},
			[]string{"result"},
		),
		DeliveryAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tracex_delivery_attempts_total",
				Help: "HTTP attempts made to the collector, retries included",
			},
		),
		DeliveryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracex_delivery_duration_seconds",
				Help:    "Chunk delivery duration in seconds, retries included",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		Encryptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracex_encryption_total",
				Help: "Envelope encryptions by outcome",
			},
			[]string{"result"},
		),
		KeyRegistrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracex_key_registrations_total",
				Help: "Public key registration attempts by outcome",
			},
			[]string{"result"},
		),
		BreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracex_breaker_state",
				Help: "Collector circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),
	}

	m.spanSuccess = m.SpansCompleted.WithLabelValues("success")
	m.spanError = m.SpansCompleted.WithLabelValues("error")
	m.chunkSent = m.Chunks.WithLabelValues("sent")
	m.chunkFailed = m.Chunks.WithLabelValues("failed")

	return m
}

// RecordSpan records a completed span and whether the buffer overwrote
func (m *Pipeline) RecordSpan(failed, overwrote bool) {
	if failed {
		m.spanError.Inc()
	} else {
		m.spanSuccess.Inc()
	}
	if overwrote {
		m.BufferOverwrites.Inc()
	}
}

// SetBufferSize sets the buffered span gauge
func (m *Pipeline) SetBufferSize(n int) {
	m.BufferSize.Set(float64(n))
}

// RecordFlush records a non-empty flush
func (m *Pipeline) RecordFlush(trigger string) {
	m.Flushes.WithLabelValues(trigger).Inc()
}

// RecordChunk records a chunk delivery outcome
func (m *Pipeline) RecordChunk(ok bool) {
	if ok {
		m.chunkSent.Inc()
	} else {
		m.chunkFailed.Inc()
	}
}

// RecordAttempt counts one HTTP attempt
func (m *Pipeline) RecordAttempt() {
	m.DeliveryAttempts.Inc()
}

// ObserveDelivery records the duration of a full delivery
func (m *Pipeline) ObserveDelivery(d time.Duration) {
	m.DeliveryDuration.Observe(d.Seconds())
}

// RecordEncryption records an envelope encryption outcome
func (m *Pipeline) RecordEncryption(ok bool) {
	if ok {
		m.Encryptions.WithLabelValues("ok").Inc()
	} else {
		m.Encryptions.WithLabelValues("failed").Inc()
	}
}

// RecordRegistration records a key registration outcome
func (m *Pipeline) RecordRegistration(result string) {
	m.KeyRegistrations.WithLabelValues(result).Inc()
}

// SetBreakerState publishes the breaker state
func (m *Pipeline) SetBreakerState(state int) {
	m.BreakerState.Set(float64(state))
}
