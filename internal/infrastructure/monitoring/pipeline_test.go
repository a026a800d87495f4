package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineRecords(t *testing.T) {
	m := NewPipeline(nil)

	m.RecordSpan(false, false)
	m.RecordSpan(true, true)
	m.RecordFlush(TriggerBatch)
	m.RecordChunk(true)
	m.RecordChunk(false)
	m.RecordAttempt()
	m.RecordAttempt()
	m.ObserveDelivery(20 * time.Millisecond)
	m.RecordEncryption(true)
	m.RecordRegistration("registered")
	m.SetBufferSize(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpansCompleted.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpansCompleted.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BufferOverwrites))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues(TriggerBatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Chunks.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DeliveryAttempts))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.BufferSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeyRegistrations.WithLabelValues("registered")))
}

func TestPipelineSharedRegistererRejectsDuplicates(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPipeline(reg)

	assert.Panics(t, func() { NewPipeline(reg) })
	assert.NotPanics(t, func() {
		NewPipeline(nil)
		NewPipeline(nil)
	})
}

func TestCollectorMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := NewCollector()

	router := gin.New()
	router.Use(Middleware(metrics))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "/health", "200")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "collector_http_requests_total")
}
