package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Tracer config
	assert.Equal(t, 1000, cfg.Tracer.BufferSize)
	assert.Equal(t, 100, cfg.Tracer.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Tracer.FlushInterval())
	assert.True(t, cfg.Tracer.AutoFlush)

	// API config
	assert.Equal(t, 30*time.Second, cfg.API.Timeout())
	assert.Equal(t, 3, cfg.API.RetryAttempts)
	assert.Equal(t, time.Second, cfg.API.RetryDelay())
	assert.Zero(t, cfg.API.MaxRetryDelay())

	// Encryption config
	assert.False(t, cfg.Encryption.Enabled)
	assert.Equal(t, ".tracex-keys.json", cfg.Encryption.KeysPath)
	assert.Equal(t, 2048, cfg.Encryption.KeyBits)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"TRACEX_API_URL":            "https://collector.example.com/api/traces",
		"TRACEX_API_KEY":            "secret",
		"TRACEX_BUFFER_SIZE":        "50",
		"TRACEX_BATCH_SIZE":         "10",
		"TRACEX_FLUSH_INTERVAL_MS":  "250",
		"TRACEX_AUTO_FLUSH":         "false",
		"TRACEX_ENCRYPTION_ENABLED": "true",
		"TRACEX_KEYS_PATH":          "/tmp/keys.json",
		"TRACEX_TAGS":               "payments,eu-west",
		"TRACEX_METADATA":           "service:checkout,env:staging",
		"TRACEX_RETRY_ATTEMPTS":     "5",
		"LOG_LEVEL":                 "debug",
		"PORT":                      "9000",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://collector.example.com/api/traces", cfg.API.URL)
	assert.Equal(t, "secret", cfg.API.Key)
	assert.Equal(t, 50, cfg.Tracer.BufferSize)
	assert.Equal(t, 10, cfg.Tracer.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Tracer.FlushInterval())
	assert.False(t, cfg.Tracer.AutoFlush)
	assert.True(t, cfg.Encryption.Enabled)
	assert.Equal(t, "/tmp/keys.json", cfg.Encryption.KeysPath)
	assert.Equal(t, []string{"payments", "eu-west"}, cfg.API.Tags)
	assert.Equal(t, map[string]string{"service": "checkout", "env": "staging"}, cfg.Tracer.Metadata)
	assert.Equal(t, 5, cfg.API.RetryAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "9000", cfg.Server.Port)

	// Untouched values keep their defaults
	assert.Equal(t, 1000, cfg.API.RetryDelayMs)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero batch", env: map[string]string{"TRACEX_BATCH_SIZE": "0"}},
		{name: "zero buffer", env: map[string]string{"TRACEX_BUFFER_SIZE": "0"}},
		{name: "no attempts", env: map[string]string{"TRACEX_RETRY_ATTEMPTS": "0"}},
		{name: "relative url", env: map[string]string{"TRACEX_API_URL": "/api/traces"}},
		{name: "weak key", env: map[string]string{"TRACEX_ENCRYPTION_ENABLED": "true", "TRACEX_KEY_BITS": "1024"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalidConfig)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestLoadFileLayering(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"tracex.yaml": `
api:
  url: http://localhost:3002/api/traces
  retryAttempts: 4
tracer:
  batchSize: 25
  metadata:
    service: payments
`,
		"tracex.toml": `
[api]
url = "http://localhost:3002/api/traces"
retryAttempts = 4

[tracer]
batchSize = 25

[tracer.metadata]
service = "payments"
`,
		"tracex.json": `{"api":{"url":"http://localhost:3002/api/traces","retryAttempts":4},
			"tracer":{"batchSize":25,"metadata":{"service":"payments"}}}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			t.Setenv(FileEnv, path)
			t.Setenv("TRACEX_RETRY_ATTEMPTS", "6")

			cfg, err := Load()
			require.NoError(t, err)

			assert.Equal(t, "http://localhost:3002/api/traces", cfg.API.URL)
			assert.Equal(t, 25, cfg.Tracer.BatchSize)
			assert.Equal(t, "payments", cfg.Tracer.Metadata["service"])
			// Environment wins over the file
			assert.Equal(t, 6, cfg.API.RetryAttempts)
			// Defaults survive for keys missing from the file
			assert.Equal(t, 1000, cfg.Tracer.BufferSize)
			assert.Equal(t, 30000, cfg.API.TimeoutMs)
		})
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracex.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o600))

	err := Default().LoadFile(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDerivedEndpoints(t *testing.T) {
	api := APIConfig{URL: "http://localhost:3002/api/traces"}

	assert.Equal(t, "http://localhost:3002/api/keys/register", api.KeysEndpoint())
	assert.Equal(t, "http://localhost:3002/api/metrics/publish", api.MetricsEndpoint())
	assert.Equal(t, "http://localhost:3002/health", api.HealthEndpoint())

	api.KeysURL = "https://keys.example.com/register"
	assert.Equal(t, "https://keys.example.com/register", api.KeysEndpoint())

	assert.Empty(t, APIConfig{}.KeysEndpoint())
}
