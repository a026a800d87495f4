package tracex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracex/internal/domain/summary"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/config"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/encryption"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/transport"
	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

type (
	// Config is the full client configuration
	Config = config.Config
	// Span is an in-flight operation
	Span = tracing.Span
	// FlushReport summarizes one flush
	FlushReport = tracing.FlushReport
	// ChunkFailure describes an undelivered chunk
	ChunkFailure = tracing.ChunkFailure
	// Value is a typed attribute value
	Value = types.Value
	// KeyPair is a PEM encoded RSA identity
	KeyPair = types.KeyPair
	// KeyStore loads and persists a KeyPair
	KeyStore = encryption.KeyStore
)

// Attribute value constructors
var (
	String = types.String
	Int    = types.Int
	Float  = types.Float
	Bool   = types.Bool
)

var (
	// LoadConfig reads defaults, the optional config file and the environment
	LoadConfig = config.Load
	// DefaultConfig returns every default
	DefaultConfig = config.Default
	// ContextWithSpan stores a span in ctx
	ContextWithSpan = tracing.ContextWithSpan
	// SpanFromContext returns the span stored in ctx, or nil
	SpanFromContext = tracing.SpanFromContext
)

// ErrEncryptionDisabled is returned by Keys when encryption is off
var ErrEncryptionDisabled = errors.New("encryption is disabled")

// Client is a tracer wired to its transport, keys and metrics
type Client struct {
	*tracing.Tracer

	transport *transport.Client
	keys      *encryption.KeyManager
}

// Option configures New
type Option func(*options)

type options struct {
	logger         *zap.Logger
	registerer     prometheus.Registerer
	keyStore       encryption.KeyStore
	roundTripper   http.RoundTripper
	onChunkFailure func(ChunkFailure)
}

// WithLogger replaces the logger built from config
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers pipeline metrics with reg instead of a private registry
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithKeyStore replaces the default env-then-file key store
func WithKeyStore(s KeyStore) Option {
	return func(o *options) { o.keyStore = s }
}

// WithRoundTripper sets the HTTP transport used for every collector call
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) { o.roundTripper = rt }
}

// OnChunkFailure is called for every chunk the collector never accepted
func OnChunkFailure(fn func(ChunkFailure)) Option {
	return func(o *options) { o.onChunkFailure = fn }
}

// New builds a client from cfg. Without an API URL spans are recorded
// and discarded at flush.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development).Logger
	}

	c := &Client{}
	metrics := monitoring.NewPipeline(o.registerer)

	tracerOpts := []tracing.Option{
		tracing.WithLogger(logger),
		tracing.WithMetrics(metrics),
	}
	if o.onChunkFailure != nil {
		tracerOpts = append(tracerOpts, tracing.WithChunkFailureHandler(o.onChunkFailure))
	}

	var registrar tracing.Registrar
	if cfg.API.URL != "" {
		transportOpts := []transport.Option{
			transport.WithLogger(logger),
			transport.WithMetrics(metrics),
		}
		if o.roundTripper != nil {
			transportOpts = append(transportOpts, transport.WithRoundTripper(o.roundTripper))
		}
		client, err := transport.New(cfg.API, transportOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		c.transport = client
		registrar = client
		tracerOpts = append(tracerOpts, tracing.WithSender(client))
	} else {
		logger.Info("No collector URL configured, spans will be discarded at flush")
	}

	if cfg.Encryption.Enabled {
		store := o.keyStore
		if store == nil {
			store = encryption.DefaultKeyStore(cfg.Encryption.KeysPath, logger)
		}
		c.keys = encryption.NewKeyManager(store, nil, cfg.Encryption.KeyBits, logger)
		tracerOpts = append(tracerOpts, tracing.WithEncryption(encryption.NewPipeline(nil), c.keys, registrar))
		if cfg.Encryption.FacilitatorID != "" {
			tracerOpts = append(tracerOpts, tracing.WithFacilitatorID(cfg.Encryption.FacilitatorID))
		}
	}

	if cfg.PublicMetrics.Enabled {
		if c.transport == nil {
			logger.Warn("Public metrics enabled without a collector URL, skipping")
		} else {
			tracerOpts = append(tracerOpts, tracing.WithPublicMetrics(
				summary.New(cfg.PublicMetrics.Samples),
				c.transport,
				cfg.PublicMetrics.Period,
				cfg.PublicMetrics.Interval(),
			))
		}
	}

	c.Tracer = tracing.New(tracing.Config{
		BufferSize:         cfg.Tracer.BufferSize,
		BatchSize:          cfg.Tracer.BatchSize,
		FlushInterval:      cfg.Tracer.FlushInterval(),
		AutoFlush:          cfg.Tracer.AutoFlush,
		MaxConcurrentSends: cfg.Tracer.MaxConcurrentSends,
		Metadata:           metadata(cfg.Tracer.Metadata),
	}, tracerOpts...)

	return c, nil
}

// NewFromEnv loads configuration and builds a client
func NewFromEnv(opts ...Option) (*Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Keys returns the process identity, generating and saving it on first
// use. It fails when encryption is disabled.
func (c *Client) Keys(ctx context.Context) (*KeyPair, error) {
	if c.keys == nil {
		return nil, ErrEncryptionDisabled
	}
	return c.keys.GetOrGenerate(ctx)
}

// HealthCheck probes the collector's /health endpoint
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.transport == nil {
		return transport.ErrNoEndpoint
	}
	return c.transport.HealthCheck(ctx)
}

// Middleware records a span for every request handled by a gin router
func (c *Client) Middleware() gin.HandlerFunc {
	return tracing.HTTPMiddleware(c.Tracer)
}

func metadata(m map[string]string) types.Attributes {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var attrs types.Attributes
	for _, k := range keys {
		attrs.Set(k, types.String(m[k]))
	}
	return attrs
}
