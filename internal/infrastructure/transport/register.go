package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracex/internal/shared/id"
	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

// Registration outcomes recorded in metrics
const (
	RegistrationCreated = "created"
	RegistrationExists  = "exists"
	RegistrationFailed  = "failed"
)

// registrations remembers identities the collector already knows
type registrations struct {
	mu   sync.Mutex
	done map[string]struct{}
}

func (r *registrations) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.done[key]
	return ok
}

func (r *registrations) add(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[key] = struct{}{}
}

// RegisterPublicKey posts {facilitatorId, publicKey} to the keys endpoint.
// A 409 means the key is already registered and counts as success.
func (c *Client) RegisterPublicKey(ctx context.Context, facilitatorID, publicKey string) error {
	endpoint := c.cfg.KeysEndpoint()
	if endpoint == "" {
		return fmt.Errorf("%w: %w", ErrRegistrationFailed, ErrNoEndpoint)
	}

	req := c.resty.R().
		SetContext(ctx).
		SetBody(types.KeyRegistration{FacilitatorID: facilitatorID, PublicKey: publicKey})
	if key := c.registrationKey(); key != "" {
		req.SetHeader(APIKeyHeader, key)
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		c.metrics.RecordRegistration(RegistrationFailed)
		return fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	switch {
	case resp.IsSuccess():
		c.metrics.RecordRegistration(RegistrationCreated)
		c.logger.Info("Registered public key", zap.String("facilitator_id", facilitatorID))
		return nil
	case resp.StatusCode() == http.StatusConflict:
		c.metrics.RecordRegistration(RegistrationExists)
		c.logger.Debug("Public key already registered", zap.String("facilitator_id", facilitatorID))
		return nil
	default:
		c.metrics.RecordRegistration(RegistrationFailed)
		return fmt.Errorf("%w: status %d: %s", ErrRegistrationFailed, resp.StatusCode(), resp.String())
	}
}

// EnsureRegistered registers the identity once per client. Failures are
// not cached so the next call tries again.
func (c *Client) EnsureRegistered(ctx context.Context, facilitatorID, publicKey string) error {
	key := facilitatorID + ":" + id.Anonymize(publicKey)
	if c.registry.has(key) {
		return nil
	}
	if err := c.RegisterPublicKey(ctx, facilitatorID, publicKey); err != nil {
		return err
	}
	c.registry.add(key)
	return nil
}

func (c *Client) registrationKey() string {
	if c.cfg.RegistrationKey != "" {
		return c.cfg.RegistrationKey
	}
	return c.cfg.Key
}

// PublishMetrics posts an anonymized summary to the public metrics endpoint
func (c *Client) PublishMetrics(ctx context.Context, metrics *types.PublicMetrics) error {
	endpoint := c.cfg.MetricsEndpoint()
	if endpoint == "" {
		return ErrNoEndpoint
	}

	req := c.resty.R().SetContext(ctx).SetBody(metrics)
	if c.cfg.Key != "" {
		req.SetAuthToken(c.cfg.Key)
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		return fmt.Errorf("publish metrics: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("publish metrics: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// HealthCheck reports whether the collector answers its health endpoint
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := c.cfg.HealthEndpoint()
	if endpoint == "" {
		return ErrNoEndpoint
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp, err := c.resty.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("health check: status %d", resp.StatusCode())
	}
	return nil
}
