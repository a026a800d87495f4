package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/tracex/internal/infrastructure/config"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

const (
	// Version is reported in the User-Agent header
	Version = "1.0.0"
	// TagsHeader carries comma separated trace tags
	TagsHeader = "X-Tag-X"
	// APIKeyHeader authenticates key registration
	APIKeyHeader = "X-API-Key"

	healthTimeout = 5 * time.Second
	maxErrorBody  = 4 << 10
)

// Client sends traces and envelopes to the collector
type Client struct {
	cfg     config.APIConfig
	retry   *retryablehttp.Client
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	// breakerSet records an explicit WithBreaker, nil included
	breakerSet bool
	metrics *monitoring.Pipeline
	logger  *zap.Logger

	userAgent string
	tags      string
	onBackoff func(attempt int, wait time.Duration)

	registry registrations
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records attempts, durations and breaker state into m
func WithMetrics(m *monitoring.Pipeline) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRoundTripper replaces the HTTP transport used by every request
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.retry.HTTPClient.Transport = rt
		c.resty.SetTransport(rt)
	}
}

// WithBackoffObserver is called with every computed retry wait
func WithBackoffObserver(fn func(attempt int, wait time.Duration)) Option {
	return func(c *Client) {
		c.onBackoff = fn
	}
}

// WithBreaker overrides the breaker built from configuration. Nil disables it.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
		c.breakerSet = true
	}
}

// New creates a client for cfg. cfg.URL is required.
func New(cfg config.APIConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNoEndpoint
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryAttempts - 1
	retryClient.RetryWaitMin = cfg.RetryDelay()
	retryClient.RetryWaitMax = cfg.MaxRetryDelay()
	retryClient.CheckRetry = checkRetry
	retryClient.ErrorHandler = errorHandler
	retryClient.HTTPClient.Timeout = cfg.Timeout()

	c := &Client{
		cfg:       cfg,
		retry:     retryClient,
		resty:     resty.New(),
		limiter:   rate.NewLimiter(rate.Inf, 0),
		userAgent: "tracex-go/" + Version,
		tags:      joinTags(cfg.Tags),
		registry:  registrations{done: make(map[string]struct{})},
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(math.Ceil(cfg.RateLimit))))
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = logging.OrNop(c.logger).Named("transport")
	if c.metrics == nil {
		c.metrics = monitoring.NewPipeline(nil)
	}

	retryClient.Logger = logging.NewLeveled(c.logger.Named("http"))
	retryClient.Backoff = c.backoff
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, _ int) {
		c.metrics.RecordAttempt()
	}

	c.resty.
		SetTimeout(cfg.Timeout()).
		SetHeader("User-Agent", c.userAgent).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(sonic.ConfigStd.Marshal).
		SetJSONUnmarshaler(sonic.ConfigStd.Unmarshal)

	if !c.breakerSet && cfg.BreakerEnabled {
		c.breaker = resilience.New("collector", resilience.Settings{
			Timeout:     cfg.BreakerCooldown(),
			ReadyToTrip: resilience.ConsecutiveFailures(uint32(max(1, cfg.BreakerFailures))),
			IsFailure:   countsAgainstBreaker,
			OnStateChange: func(name string, from, to resilience.State) {
				resilience.LogTransitions(c.logger)(name, from, to)
				c.metrics.SetBreakerState(int(to))
			},
		})
	}

	return c, nil
}

// SendTrace posts a plaintext trace
func (c *Client) SendTrace(ctx context.Context, trace *types.Trace) error {
	body, err := sonic.ConfigStd.Marshal(trace)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("encode trace: %w", err)}
	}
	return c.deliver(ctx, trace.TraceID, body)
}

// SendEncrypted posts an encrypted envelope
func (c *Client) SendEncrypted(ctx context.Context, envelope *types.EncryptedTrace) error {
	body, err := sonic.ConfigStd.Marshal(envelope)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("encode envelope: %w", err)}
	}
	return c.deliver(ctx, envelope.TraceID, body)
}

// BreakerState returns the collector breaker state, closed when disabled
func (c *Client) BreakerState() resilience.State {
	if c.breaker == nil {
		return resilience.StateClosed
	}
	return c.breaker.State()
}

func (c *Client) deliver(ctx context.Context, traceID string, body []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &DeliveryError{Err: fmt.Errorf("rate limit: %w", err)}
	}

	start := time.Now()
	defer func() {
		c.metrics.ObserveDelivery(time.Since(start))
	}()

	if c.breaker == nil {
		return c.post(ctx, body)
	}

	err := c.breaker.Execute(func() error {
		return c.post(ctx, body)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		c.logger.Debug("Collector breaker rejected delivery", zap.String("trace_id", traceID))
		return &DeliveryError{Err: err}
	}
	return err
}

func (c *Client) post(ctx context.Context, body []byte) error {
	payload := body
	if c.cfg.Compress {
		compressed, err := gzipBytes(body)
		if err != nil {
			return &DeliveryError{Err: fmt.Errorf("compress body: %w", err)}
		}
		payload = compressed
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, payload)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	c.setHeaders(req.Header)

	resp, err := c.retry.Do(req)
	if err != nil {
		var derr *DeliveryError
		if errors.As(err, &derr) {
			return derr
		}
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

func (c *Client) setHeaders(h http.Header) {
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", c.userAgent)
	if c.cfg.Key != "" {
		h.Set("Authorization", "Bearer "+c.cfg.Key)
	}
	if c.cfg.Compress {
		h.Set("Content-Encoding", "gzip")
	}
	if c.tags != "" {
		h.Set(TagsHeader, c.tags)
	}
}

// backoff waits base*2^attempt, capped by limit when limit is positive
func (c *Client) backoff(base, limit time.Duration, attempt int, _ *http.Response) time.Duration {
	wait := ExponentialBackoff(base, limit, attempt)
	if c.onBackoff != nil {
		c.onBackoff(attempt, wait)
	}
	return wait
}

// ExponentialBackoff returns base*2^attempt, capped at limit when limit > 0
func ExponentialBackoff(base, limit time.Duration, attempt int) time.Duration {
	wait := float64(base) * math.Pow(2, float64(attempt))
	if limit > 0 && wait >= float64(limit) {
		return limit
	}
	if wait >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(wait)
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return true, nil
	}
	return false, nil
}

func errorHandler(resp *http.Response, err error, numTries int) (*http.Response, error) {
	derr := &DeliveryError{Attempts: numTries, Err: err}
	if resp != nil {
		derr.StatusCode = resp.StatusCode
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		if derr.Err == nil {
			derr.Err = fmt.Errorf("collector responded %s: %s", resp.Status, strings.TrimSpace(string(msg)))
		}
	}
	return nil, derr
}

// countsAgainstBreaker ignores cancellations made by the caller
func countsAgainstBreaker(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func gzipBytes(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, ",")
}
