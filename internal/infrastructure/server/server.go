package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracex/internal/api/collector"
	"github.com/GriffinCanCode/tracex/internal/api/middleware"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/config"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/encryption"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/tracing"
)

// Server wraps the collector HTTP server and its dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	store   *collector.Store
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Collector
}

// Option configures a Server
type Option func(*options)

type options struct {
	logger *logging.Logger
	tracer *tracing.Tracer
}

// WithLogger overrides the logger built from config
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer records a span for every request on t
func WithTracer(t *tracing.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// NewServer creates a collector server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing TraceX collector",
		zap.String("addr", cfg.Server.Address()),
		zap.Int("store_size", cfg.Server.StoreSize),
	)

	metrics := monitoring.NewCollector()
	store := collector.NewStore(cfg.Server.StoreSize)

	handlerOpts := []collector.Option{
		collector.WithMetrics(metrics),
		collector.WithLogger(logger.Logger),
	}
	if path := cfg.Server.PrivateKeysPath; path != "" {
		keys, err := loadKeys(path, logger.Logger)
		if err != nil {
			return nil, err
		}
		handlerOpts = append(handlerOpts, collector.WithDecryption(encryption.NewPipeline(nil), keys))
		logger.Info("Envelope decryption enabled", zap.String("keys_path", path))
	}
	handlers := collector.NewHandlers(store, handlerOpts...)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	if o.tracer != nil {
		router.Use(tracing.HTTPMiddleware(o.tracer))
	}
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.Server.RequestsPerSecond > 0 {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.Server.RequestsPerSecond),
			zap.Int("burst", cfg.Server.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitFromConfig(cfg.Server)))
	}
	router.Use(middleware.Decompress(middleware.DefaultMaxBody))

	handlers.Register(router, collector.Auth{
		APIKey:          cfg.Server.APIKey,
		RegistrationKey: cfg.Server.RegistrationKey,
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Collector initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Server.Address(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:   store,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// loadKeys reads the facilitator key file. A missing file is an error;
// the collector never generates keys.
func loadKeys(path string, logger *zap.Logger) (*encryption.KeyManager, error) {
	store := encryption.NewFileKeyStore(path)
	pair, err := store.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load collector keys from %s: %w", path, err)
	}

	keys := encryption.NewKeyManager(store, nil, 0, logger)
	keys.SetKeys(pair)
	return keys, nil
}

// Handler exposes the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store returns the backing record store
func (s *Server) Store() *collector.Store {
	return s.store
}

// Run starts the HTTP server and blocks until it stops.
// A graceful Shutdown makes Run return nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on l until Shutdown
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", l.Addr().String()))
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	_ = s.logger.Sync()
	return nil
}
