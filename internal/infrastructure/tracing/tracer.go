package tracing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/tracex/internal/domain/summary"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/encryption"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracex/internal/shared/id"
	"github.com/GriffinCanCode/tracex/internal/shared/ring"
	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

// Sender delivers traces to the collector
type Sender interface {
	SendTrace(ctx context.Context, trace *types.Trace) error
	SendEncrypted(ctx context.Context, envelope *types.EncryptedTrace) error
}

// Registrar announces a public key to the collector
type Registrar interface {
	EnsureRegistered(ctx context.Context, facilitatorID, publicKey string) error
}

// KeySource supplies the public key envelopes are sealed for
type KeySource interface {
	PublicKey(ctx context.Context) (string, error)
}

// MetricsPublisher receives anonymous summaries
type MetricsPublisher interface {
	PublishMetrics(ctx context.Context, metrics *types.PublicMetrics) error
}

var errNoFacilitator = errors.New("no facilitator id configured")

// finalFlushGrace bounds the last flush of Shutdown when the caller's
// context has already expired
const finalFlushGrace = 2 * time.Second

// Config controls buffering and flushing
type Config struct {
	// BufferSize is the ring capacity; the oldest span is overwritten when full
	BufferSize int
	// BatchSize is both the flush threshold and the max spans per delivery
	BatchSize int
	// FlushInterval is the period of the background flush
	FlushInterval time.Duration
	// AutoFlush enables the periodic flush
	AutoFlush bool
	// MaxConcurrentSends bounds chunk deliveries in flight per flush
	MaxConcurrentSends int
	// Metadata is merged into every trace
	Metadata types.Attributes
}

// DefaultConfig returns the default tracer configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:         1000,
		BatchSize:          100,
		FlushInterval:      5 * time.Second,
		AutoFlush:          true,
		MaxConcurrentSends: 4,
	}
}

// ChunkFailure describes a chunk the collector never accepted. Its spans
// are dropped.
type ChunkFailure struct {
	TraceID string
	Spans   []types.SpanData
	Err     error
}

// FlushReport summarizes one flush
type FlushReport struct {
	TraceID string
	Spans   int
	Chunks  int
	Failed  int
}

type encryptionSetup struct {
	pipeline  *encryption.Pipeline
	keys      KeySource
	registrar Registrar
}

type publishSetup struct {
	aggregator *summary.Aggregator
	publisher  MetricsPublisher
	period     string
	interval   time.Duration
}

// Tracer issues spans, buffers completed ones and ships them in batches.
// Span completion never blocks on I/O: reaching BatchSize only signals
// the background worker.
type Tracer struct {
	cfg            Config
	logger         *zap.Logger
	metrics        *monitoring.Pipeline
	clock          Clock
	newID          id.Generator
	now            func() time.Time
	sender         Sender
	encryption     *encryptionSetup
	facilitatorID  string
	publish        *publishSetup
	onChunkFailure func(ChunkFailure)

	traceID atomic.Value // string

	mu       sync.Mutex
	buffer   *ring.Buffer[types.SpanData]
	metadata types.Attributes
	closed   bool

	flushCh      chan struct{}
	stop         chan struct{}
	done         chan struct{}
	workerCtx    context.Context
	cancelWorker context.CancelFunc
	shutdownOnce sync.Once
}

// Option configures a Tracer
type Option func(*Tracer)

// WithSender sets the transport. Without one, flushes discard spans.
func WithSender(s Sender) Option {
	return func(t *Tracer) {
		t.sender = s
	}
}

// WithEncryption seals every chunk for the key from keys. A non-nil
// registrar announces the key before delivery, best effort.
func WithEncryption(pipeline *encryption.Pipeline, keys KeySource, registrar Registrar) Option {
	return func(t *Tracer) {
		t.encryption = &encryptionSetup{pipeline: pipeline, keys: keys, registrar: registrar}
	}
}

// WithFacilitatorID sets the facilitator id. When encryption is on and no
// id is set, one is derived from the public key.
func WithFacilitatorID(facilitatorID string) Option {
	return func(t *Tracer) {
		t.facilitatorID = facilitatorID
	}
}

// WithPublicMetrics feeds completed spans into agg and publishes its
// summary every interval and at shutdown.
func WithPublicMetrics(agg *summary.Aggregator, publisher MetricsPublisher, period string, interval time.Duration) Option {
	return func(t *Tracer) {
		t.publish = &publishSetup{aggregator: agg, publisher: publisher, period: period, interval: interval}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracer) {
		t.logger = logger
	}
}

// WithMetrics records pipeline metrics into m
func WithMetrics(m *monitoring.Pipeline) Option {
	return func(t *Tracer) {
		t.metrics = m
	}
}

// WithClock sets the span clock
func WithClock(c Clock) Option {
	return func(t *Tracer) {
		t.clock = c
	}
}

// WithIDGenerator sets the trace id source
func WithIDGenerator(g id.Generator) Option {
	return func(t *Tracer) {
		t.newID = g
	}
}

// WithChunkFailureHandler is called once per chunk that failed delivery
func WithChunkFailureHandler(fn func(ChunkFailure)) Option {
	return func(t *Tracer) {
		t.onChunkFailure = fn
	}
}

// New creates a tracer and starts its background worker. Call Shutdown
// to stop it.
func New(cfg Config, opts ...Option) *Tracer {
	defaults := DefaultConfig()
	if cfg.BufferSize < 1 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.MaxConcurrentSends < 1 {
		cfg.MaxConcurrentSends = defaults.MaxConcurrentSends
	}

	t := &Tracer{
		cfg:      cfg,
		clock:    MonotonicClock,
		newID:    id.NewTraceID,
		now:      time.Now,
		buffer:   ring.New[types.SpanData](cfg.BufferSize),
		metadata: cfg.Metadata.Clone(),
		flushCh:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.logger = logging.OrNop(t.logger).Named("tracer")
	if t.metrics == nil {
		t.metrics = monitoring.NewPipeline(nil)
	}
	t.traceID.Store(t.newID())
	t.workerCtx, t.cancelWorker = context.WithCancel(context.Background())

	go t.run()
	return t
}

// StartSpan opens a span bound to the current trace id
func (t *Tracer) StartSpan(name string) *Span {
	return newSpan(name, t.TraceID(), t.clock, t.complete)
}

// Run executes fn inside a span named name
func (t *Tracer) Run(name string, fn func() error) error {
	return t.StartSpan(name).Wrap(fn)
}

// AddMetadata sets a metadata entry for subsequent traces
func (t *Tracer) AddMetadata(key string, value types.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.metadata = t.metadata.Clone()
	t.metadata.Set(key, value)
}

// TraceID returns the id the next flushed spans will carry
func (t *Tracer) TraceID() string {
	return t.traceID.Load().(string)
}

// BufferSize returns the number of buffered spans
func (t *Tracer) BufferSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buffer.Size()
}

// complete receives every ended span
func (t *Tracer) complete(data types.SpanData) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	fresh := t.buffer.Push(data)
	size := t.buffer.Size()
	t.mu.Unlock()

	t.metrics.RecordSpan(data.Failed(), !fresh)
	t.metrics.SetBufferSize(size)
	if t.publish != nil {
		t.publish.aggregator.Record(data)
	}

	if size >= t.cfg.BatchSize && t.sender != nil {
		select {
		case t.flushCh <- struct{}{}:
		default:
		}
	}
}

func (t *Tracer) run() {
	defer close(t.done)

	var tick <-chan time.Time
	if t.cfg.AutoFlush && t.cfg.FlushInterval > 0 && t.sender != nil {
		ticker := time.NewTicker(t.cfg.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var publish <-chan time.Time
	if t.publish != nil && t.publish.interval > 0 {
		ticker := time.NewTicker(t.publish.interval)
		defer ticker.Stop()
		publish = ticker.C
	}

	for {
		select {
		case <-t.stop:
			return
		case <-t.flushCh:
			t.flush(t.workerCtx, monitoring.TriggerBatch, false)
		case <-tick:
			t.flush(t.workerCtx, monitoring.TriggerInterval, false)
		case <-publish:
			t.publishSummary(t.workerCtx)
		}
	}
}

// Flush drains the buffer and delivers it in chunks of at most BatchSize.
// Every chunk is attempted; failures are logged and reported, not returned.
func (t *Tracer) Flush(ctx context.Context) FlushReport {
	return t.flush(ctx, monitoring.TriggerManual, false)
}

// Shutdown stops the background worker, waits for an in-flight flush and
// flushes what is left. Spans completed afterwards are dropped. If ctx
// expires first the in-flight flush is cancelled, the remaining buffer is
// still attempted within finalFlushGrace and ctx.Err is returned.
// Only the first call has any effect.
func (t *Tracer) Shutdown(ctx context.Context) error {
	first := false
	t.shutdownOnce.Do(func() { first = true })
	if !first {
		return nil
	}

	close(t.stop)

	var err error
	select {
	case <-t.done:
	case <-ctx.Done():
		t.cancelWorker()
		<-t.done
		err = ctx.Err()
	}

	flushCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), finalFlushGrace)
		defer cancel()
	}

	report := t.flush(flushCtx, monitoring.TriggerShutdown, true)
	t.publishSummary(flushCtx)
	t.cancelWorker()

	t.logger.Info("Tracer shut down",
		zap.Int("spans", report.Spans),
		zap.Int("failed_chunks", report.Failed),
	)
	return err
}

// drain takes the buffered spans and rotates the trace id in one step so
// spans completing during delivery land in the next trace
func (t *Tracer) drain(closing bool) ([]types.SpanData, string, types.Attributes) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if closing {
		t.closed = true
	}

	spans := t.buffer.Drain()
	t.metrics.SetBufferSize(0)
	if len(spans) == 0 {
		return nil, "", nil
	}

	traceID := t.TraceID()
	t.traceID.Store(t.newID())
	return spans, traceID, t.metadata
}

func (t *Tracer) flush(ctx context.Context, trigger string, closing bool) FlushReport {
	spans, traceID, metadata := t.drain(closing)
	if len(spans) == 0 {
		return FlushReport{}
	}
	t.metrics.RecordFlush(trigger)

	report := FlushReport{TraceID: traceID, Spans: len(spans)}
	if t.sender == nil {
		t.logger.Debug("No transport configured, discarding spans", zap.Int("spans", len(spans)))
		return report
	}

	chunks := chunk(spans, t.cfg.BatchSize)
	report.Chunks = len(chunks)

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(t.cfg.MaxConcurrentSends)

	for i, spans := range chunks {
		g.Go(func() error {
			trace := &types.Trace{TraceID: traceID, Spans: spans, Metadata: metadata}
			if err := t.send(ctx, trace); err != nil {
				failed.Add(1)
				t.metrics.RecordChunk(false)
				t.logger.Warn("Failed to deliver chunk",
					zap.String("trace_id", traceID),
					zap.Int("chunk", i),
					zap.Int("spans", len(spans)),
					zap.Error(err),
				)
				if t.onChunkFailure != nil {
					t.onChunkFailure(ChunkFailure{TraceID: traceID, Spans: spans, Err: err})
				}
				return nil
			}
			t.metrics.RecordChunk(true)
			return nil
		})
	}
	_ = g.Wait()

	report.Failed = int(failed.Load())
	return report
}

func (t *Tracer) send(ctx context.Context, trace *types.Trace) error {
	if t.encryption == nil {
		return t.sender.SendTrace(ctx, trace)
	}

	publicKey, err := t.encryption.keys.PublicKey(ctx)
	if err != nil {
		t.metrics.RecordEncryption(false)
		t.logger.Error("Failed to load public key", zap.String("trace_id", trace.TraceID), zap.Error(err))
		return fmt.Errorf("load public key: %w", err)
	}

	facilitatorID := t.facilitatorID
	if facilitatorID == "" {
		facilitatorID = id.FacilitatorFromKey(publicKey)
	}

	if t.encryption.registrar != nil {
		if err := t.encryption.registrar.EnsureRegistered(ctx, facilitatorID, publicKey); err != nil {
			t.logger.Warn("Key registration failed, delivering anyway",
				zap.String("facilitator_id", facilitatorID),
				zap.Error(err),
			)
		}
	}

	envelope, err := t.encryption.pipeline.Encrypt(trace, publicKey, facilitatorID)
	if err != nil {
		t.metrics.RecordEncryption(false)
		t.logger.Error("Failed to encrypt trace", zap.String("trace_id", trace.TraceID), zap.Error(err))
		return err
	}
	t.metrics.RecordEncryption(true)

	return t.sender.SendEncrypted(ctx, envelope)
}

func (t *Tracer) publishSummary(ctx context.Context) {
	if t.publish == nil || t.publish.publisher == nil {
		return
	}

	facilitatorID, err := t.resolveFacilitator(ctx)
	if err != nil {
		t.logger.Debug("Skipping public metrics", zap.Error(err))
		return
	}

	metrics := t.publish.aggregator.Snapshot(facilitatorID, t.publish.period, t.now())
	if metrics == nil {
		return
	}
	if err := t.publish.publisher.PublishMetrics(ctx, metrics); err != nil {
		t.logger.Warn("Failed to publish public metrics", zap.Error(err))
		return
	}
	t.publish.aggregator.Reset()
	t.logger.Debug("Published public metrics", zap.Int("transactions", metrics.TotalTransactions))
}

func (t *Tracer) resolveFacilitator(ctx context.Context) (string, error) {
	if t.facilitatorID != "" {
		return t.facilitatorID, nil
	}
	if t.encryption == nil {
		return "", errNoFacilitator
	}
	publicKey, err := t.encryption.keys.PublicKey(ctx)
	if err != nil {
		return "", err
	}
	return id.FacilitatorFromKey(publicKey), nil
}

func chunk(spans []types.SpanData, size int) [][]types.SpanData {
	chunks := make([][]types.SpanData, 0, (len(spans)+size-1)/size)
	for len(spans) > size {
		chunks = append(chunks, spans[:size:size])
		spans = spans[size:]
	}
	return append(chunks, spans)
}
