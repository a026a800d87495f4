package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracex/internal/infrastructure/encryption"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

const (
	defaultPeriod = "24h"
	// MetadataFacilitator is the trace metadata key that files plain traces
	// under a facilitator
	MetadataFacilitator = "facilitatorId"
)

// PrivateKeySource supplies the PEM private key used to open envelopes
type PrivateKeySource interface {
	PrivateKey(ctx context.Context) (string, error)
}

// Handlers serves the collector API
type Handlers struct {
	store    *Store
	metrics  *monitoring.Collector
	logger   *zap.Logger
	pipeline *encryption.Pipeline
	keys     PrivateKeySource
	feed     *feed
	now      func() time.Time
}

// Option configures Handlers
type Option func(*Handlers)

// WithMetrics records request outcomes on m
func WithMetrics(m *monitoring.Collector) Option {
	return func(h *Handlers) { h.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(h *Handlers) { h.logger = l }
}

// WithDecryption opens accepted envelopes with the private key from keys
// so stored records carry the plaintext trace.
func WithDecryption(pipeline *encryption.Pipeline, keys PrivateKeySource) Option {
	return func(h *Handlers) {
		h.pipeline = pipeline
		h.keys = keys
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// NewHandlers creates the collector handlers over store
func NewHandlers(store *Store, opts ...Option) *Handlers {
	h := &Handlers{store: store, feed: newFeed(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.metrics == nil {
		h.metrics = monitoring.NewCollector()
	}
	h.logger = h.logger.Named("collector")
	return h
}

type envelopeRequest struct {
	TraceID         string `json:"traceId" binding:"required"`
	FacilitatorID   string `json:"facilitatorId"`
	EncryptedData   string `json:"encryptedData" binding:"required"`
	AESKeyEncrypted string `json:"aesKeyEncrypted" binding:"required"`
	IV              string `json:"iv" binding:"required"`
	Timestamp       *int64 `json:"timestamp" binding:"required"`
}

type registerRequest struct {
	FacilitatorID string `json:"facilitatorId" binding:"required"`
	PublicKey     string `json:"publicKey" binding:"required"`
}

type publishRequest struct {
	FacilitatorID     string   `json:"facilitatorId" binding:"required"`
	SuccessRate       *float64 `json:"successRate" binding:"required,min=0,max=1"`
	AvgLatency        *float64 `json:"avgLatency" binding:"required,min=0"`
	P95Latency        float64  `json:"p95Latency" binding:"min=0"`
	TotalTransactions *int     `json:"totalTransactions" binding:"required,min=0"`
	Period            string   `json:"period"`
	Timestamp         int64    `json:"timestamp"`
}

// PostTraces accepts a single trace or an array, plain or encrypted
func (h *Handlers) PostTraces(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "Payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid trace data", "details": err.Error()})
		return
	}

	items, err := splitBatch(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid trace data", "details": err.Error()})
		return
	}

	tags := ParseTags(c.Request.Header.Values(TagHeader))
	created := h.now()
	records := make([]Record, 0, len(items))
	for i, raw := range items {
		rec, err := decodeRecord(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid trace data",
				"details": fmt.Sprintf("item %d: %v", i, err),
			})
			return
		}
		rec.Tags = tags
		rec.CreatedAt = created
		records = append(records, rec)
	}

	h.decrypt(c.Request.Context(), records)
	if dropped := h.store.Add(records...); dropped > 0 {
		h.logger.Debug("Store full, oldest records overwritten", zap.Int("overwritten", dropped))
	}
	if dropped := h.feed.publish(records); dropped > 0 {
		h.logger.Debug("Slow stream subscribers missed records", zap.Int("dropped", dropped))
	}

	var plain, encrypted int
	for _, r := range records {
		if r.Kind == KindEncrypted {
			encrypted++
		} else {
			plain++
		}
	}
	h.metrics.RecordTraces(KindPlain, plain)
	h.metrics.RecordTraces(KindEncrypted, encrypted)
	h.logger.Debug("Traces accepted",
		zap.Int("plain", plain),
		zap.Int("encrypted", encrypted),
		zap.Strings("tags", tags),
	)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"saved":       len(records),
		"tagsApplied": tags,
	})
}

// GetTraces lists a facilitator's stored traces, newest first
func (h *Handlers) GetTraces(c *gin.Context) {
	facilitatorID := c.Query("facilitatorId")
	if facilitatorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "facilitatorId query parameter is required"})
		return
	}

	limit, ok1 := queryInt(c, "limit", 100, 0, 1000)
	offset, ok2 := queryInt(c, "offset", 0, 0, 1<<30)
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit and offset must be non-negative integers"})
		return
	}

	traces := h.store.Traces(facilitatorID, limit, offset)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    traces,
		"count":   len(traces),
	})
}

// GetTagSummary counts tags over stored traces
func (h *Handlers) GetTagSummary(c *gin.Context) {
	limit, ok1 := queryInt(c, "limit", 25, 1, 200)
	minCount, ok2 := queryInt(c, "minCount", 1, 1, 1000)
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid query parameters"})
		return
	}

	from, err1 := queryTime(c, "from")
	to, err2 := queryTime(c, "to")
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid date format. Use ISO 8601 strings."})
		return
	}

	summary := h.store.TagSummary(c.Query("facilitatorId"), minCount, limit, from, to)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
		"count":   len(summary),
	})
}

// RegisterKey stores a facilitator public key
func (h *Handlers) RegisterKey(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.RecordRegistration("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request data", "details": err.Error()})
		return
	}
	if _, err := encryption.ParsePublicKey(req.PublicKey); err != nil {
		h.metrics.RecordRegistration("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request data", "details": err.Error()})
		return
	}

	if err := h.store.RegisterKey(req.FacilitatorID, req.PublicKey); err != nil {
		h.metrics.RecordRegistration("conflict")
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "Facilitator ID already registered. Use a different ID or update endpoint.",
		})
		return
	}

	h.metrics.RecordRegistration("created")
	h.logger.Info("Public key registered", zap.String("facilitator_id", req.FacilitatorID))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Public key registered successfully",
	})
}

// PublishMetrics accepts an anonymized performance summary
func (h *Handlers) PublishMetrics(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid metrics data", "details": err.Error()})
		return
	}

	m := types.PublicMetrics{
		FacilitatorID:     req.FacilitatorID,
		SuccessRate:       *req.SuccessRate,
		AvgLatency:        *req.AvgLatency,
		P95Latency:        req.P95Latency,
		TotalTransactions: *req.TotalTransactions,
		Period:            req.Period,
		Timestamp:         req.Timestamp,
	}
	if m.Period == "" {
		m.Period = defaultPeriod
	}
	if m.Timestamp == 0 {
		m.Timestamp = h.now().UnixMilli()
	}
	h.store.AddMetrics(m)
	h.metrics.MetricsPublished.Inc()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Metrics published successfully",
	})
}

// GetPublicMetrics lists summaries for a period
func (h *Handlers) GetPublicMetrics(c *gin.Context) {
	period := c.DefaultQuery("period", defaultPeriod)
	limit, ok := queryInt(c, "limit", 100, 0, 1000)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a non-negative integer"})
		return
	}

	metrics := h.store.PublicMetrics(period, limit)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    metrics,
		"period":  period,
		"count":   len(metrics),
	})
}

// Health reports liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"status":    "healthy",
		"timestamp": h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// decrypt fills Trace on envelopes the configured key can open.
// Envelopes for other keys are stored sealed.
func (h *Handlers) decrypt(ctx context.Context, records []Record) {
	if h.pipeline == nil || h.keys == nil {
		return
	}

	var privateKey string
	for i := range records {
		if records[i].Envelope == nil {
			continue
		}
		if privateKey == "" {
			key, err := h.keys.PrivateKey(ctx)
			if err != nil {
				h.logger.Warn("Private key unavailable, storing envelopes sealed", zap.Error(err))
				return
			}
			privateKey = key
		}

		trace, err := h.pipeline.Decrypt(records[i].Envelope, privateKey)
		if err != nil {
			h.logger.Debug("Envelope not decryptable with collector key",
				zap.String("trace_id", records[i].TraceID),
				zap.Error(err),
			)
			continue
		}
		records[i].Trace = trace
	}
}

// splitBatch returns the raw items of a single object or an array body
func splitBatch(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	if body[0] != '[' {
		return []json.RawMessage{body}, nil
	}

	var items []json.RawMessage
	if err := sonic.ConfigStd.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("empty batch")
	}
	return items, nil
}

// decodeRecord detects the payload variant by the encryptedData member
func decodeRecord(raw json.RawMessage) (Record, error) {
	var probe struct {
		EncryptedData *json.RawMessage `json:"encryptedData"`
	}
	if err := sonic.ConfigStd.Unmarshal(raw, &probe); err != nil {
		return Record{}, err
	}

	if probe.EncryptedData != nil {
		var req envelopeRequest
		if err := sonic.ConfigStd.Unmarshal(raw, &req); err != nil {
			return Record{}, err
		}
		if err := binding.Validator.ValidateStruct(&req); err != nil {
			return Record{}, err
		}
		return Record{
			TraceID:       req.TraceID,
			FacilitatorID: req.FacilitatorID,
			Kind:          KindEncrypted,
			Envelope: &types.EncryptedTrace{
				TraceID:         req.TraceID,
				FacilitatorID:   req.FacilitatorID,
				EncryptedData:   req.EncryptedData,
				AESKeyEncrypted: req.AESKeyEncrypted,
				IV:              req.IV,
				Timestamp:       *req.Timestamp,
			},
		}, nil
	}

	var trace types.Trace
	if err := sonic.ConfigStd.Unmarshal(raw, &trace); err != nil {
		return Record{}, err
	}
	if err := validateTrace(&trace); err != nil {
		return Record{}, err
	}

	rec := Record{TraceID: trace.TraceID, Kind: KindPlain, Trace: &trace}
	if v, ok := trace.Metadata.Get(MetadataFacilitator); ok && v.Kind() == types.KindString {
		rec.FacilitatorID = v.AsString()
	}
	return rec, nil
}

func validateTrace(t *types.Trace) error {
	if t.TraceID == "" {
		return errors.New("traceId is required")
	}
	if t.Spans == nil {
		return errors.New("spans is required")
	}
	for i, s := range t.Spans {
		if s.Name == "" {
			return fmt.Errorf("spans[%d].name is required", i)
		}
		if s.Status != types.StatusSuccess && s.Status != types.StatusError {
			return fmt.Errorf("spans[%d].status must be success or error", i)
		}
	}
	return nil
}

func queryInt(c *gin.Context, name string, def, lo, hi int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

func queryTime(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
