package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tracex/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

func TestRegisterPublicKey(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
		result  string
	}{
		{name: "created", status: http.StatusCreated, result: RegistrationCreated},
		{name: "already registered", status: http.StatusConflict, result: RegistrationExists},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: true, result: RegistrationFailed},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true, result: RegistrationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got types.KeyRegistration
			var apiKey, path string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				apiKey = r.Header.Get(APIKeyHeader)
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			cfg := testConfig(server.URL + "/api/traces")
			cfg.RegistrationKey = "register-me"
			metrics := monitoring.NewPipeline(nil)
			client, err := New(cfg, WithMetrics(metrics))
			require.NoError(t, err)

			err = client.RegisterPublicKey(context.Background(), "fac_1", "PEM")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRegistrationFailed)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, "/api/keys/register", path)
			assert.Equal(t, "register-me", apiKey)
			assert.Equal(t, types.KeyRegistration{FacilitatorID: "fac_1", PublicKey: "PEM"}, got)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.KeyRegistrations.WithLabelValues(tt.result)))
		})
	}
}

func TestRegistrationFallsBackToAPIKey(t *testing.T) {
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get(APIKeyHeader)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Key = "bearer"
	cfg.KeysURL = server.URL + "/custom/keys"
	client, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, client.RegisterPublicKey(context.Background(), "fac", "PEM"))
	assert.Equal(t, "bearer", apiKey)
}

func TestEnsureRegisteredCachesSuccessOnly(t *testing.T) {
	var hits atomic.Int32
	var fail atomic.Bool
	fail.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, err := New(testConfig(server.URL))
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, client.EnsureRegistered(ctx, "fac", "PEM"), ErrRegistrationFailed)

	fail.Store(false)
	require.NoError(t, client.EnsureRegistered(ctx, "fac", "PEM"))
	require.NoError(t, client.EnsureRegistered(ctx, "fac", "PEM"))
	assert.Equal(t, int32(2), hits.Load())

	// A rotated key is a new identity
	require.NoError(t, client.EnsureRegistered(ctx, "fac", "PEM-2"))
	assert.Equal(t, int32(3), hits.Load())
}

func TestPublishMetrics(t *testing.T) {
	var got types.PublicMetrics
	var auth, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(server.URL + "/api/traces")
	cfg.Key = "token"
	client, err := New(cfg)
	require.NoError(t, err)

	sent := &types.PublicMetrics{
		FacilitatorID:     "abc",
		SuccessRate:       0.75,
		AvgLatency:        120,
		TotalTransactions: 4,
		Period:            "24h",
	}
	require.NoError(t, client.PublishMetrics(context.Background(), sent))
	assert.Equal(t, "/api/metrics/publish", path)
	assert.Equal(t, "Bearer token", auth)
	assert.Equal(t, *sent, got)
}

func TestPublishMetricsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "successRate out of range", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := New(testConfig(server.URL))
	require.NoError(t, err)

	err = client.PublishMetrics(context.Background(), &types.PublicMetrics{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestHealthCheck(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"status":"healthy"}`))
	}))
	defer server.Close()

	client, err := New(testConfig(server.URL + "/api/traces"))
	require.NoError(t, err)

	assert.NoError(t, client.HealthCheck(context.Background()))

	healthy.Store(false)
	assert.Error(t, client.HealthCheck(context.Background()))
}
