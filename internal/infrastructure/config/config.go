package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the variable holding an optional config file path
const FileEnv = "TRACEX_CONFIG_FILE"

// ErrInvalidConfig is returned when validation fails
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all configuration.
type Config struct {
	API           APIConfig           `yaml:"api" toml:"api" json:"api"`
	Tracer        TracerConfig        `yaml:"tracer" toml:"tracer" json:"tracer"`
	Encryption    EncryptionConfig    `yaml:"encryption" toml:"encryption" json:"encryption"`
	PublicMetrics PublicMetricsConfig `yaml:"publicMetrics" toml:"publicMetrics" json:"publicMetrics"`
	Logging       LogConfig           `yaml:"logging" toml:"logging" json:"logging"`
	Server        ServerConfig        `yaml:"server" toml:"server" json:"server"`
}

// APIConfig holds collector endpoint and delivery settings.
type APIConfig struct {
	URL               string   `envconfig:"TRACEX_API_URL" yaml:"url" toml:"url" json:"url"`
	Key               string   `envconfig:"TRACEX_API_KEY" yaml:"key" toml:"key" json:"key"`
	KeysURL           string   `envconfig:"TRACEX_KEYS_URL" yaml:"keysUrl" toml:"keysUrl" json:"keysUrl"`
	MetricsURL        string   `envconfig:"TRACEX_METRICS_URL" yaml:"metricsUrl" toml:"metricsUrl" json:"metricsUrl"`
	RegistrationKey   string   `envconfig:"TRACEX_REGISTRATION_API_KEY" yaml:"registrationKey" toml:"registrationKey" json:"registrationKey"`
	TimeoutMs         int      `envconfig:"TRACEX_TIMEOUT_MS" yaml:"timeoutMs" toml:"timeoutMs" json:"timeoutMs"`
	RetryAttempts     int      `envconfig:"TRACEX_RETRY_ATTEMPTS" yaml:"retryAttempts" toml:"retryAttempts" json:"retryAttempts"`
	RetryDelayMs      int      `envconfig:"TRACEX_RETRY_DELAY_MS" yaml:"retryDelayMs" toml:"retryDelayMs" json:"retryDelayMs"`
	MaxRetryDelayMs   int      `envconfig:"TRACEX_MAX_RETRY_DELAY_MS" yaml:"maxRetryDelayMs" toml:"maxRetryDelayMs" json:"maxRetryDelayMs"`
	Compress          bool     `envconfig:"TRACEX_COMPRESS" yaml:"compress" toml:"compress" json:"compress"`
	Tags              []string `envconfig:"TRACEX_TAGS" yaml:"tags" toml:"tags" json:"tags"`
	RateLimit         float64  `envconfig:"TRACEX_RATE_LIMIT" yaml:"rateLimit" toml:"rateLimit" json:"rateLimit"`
	BreakerEnabled    bool     `envconfig:"TRACEX_BREAKER_ENABLED" yaml:"breakerEnabled" toml:"breakerEnabled" json:"breakerEnabled"`
	BreakerFailures   int      `envconfig:"TRACEX_BREAKER_FAILURES" yaml:"breakerFailures" toml:"breakerFailures" json:"breakerFailures"`
	BreakerCooldownMs int      `envconfig:"TRACEX_BREAKER_COOLDOWN_MS" yaml:"breakerCooldownMs" toml:"breakerCooldownMs" json:"breakerCooldownMs"`
}

// TracerConfig holds buffering and flush settings.
type TracerConfig struct {
	BufferSize         int               `envconfig:"TRACEX_BUFFER_SIZE" yaml:"bufferSize" toml:"bufferSize" json:"bufferSize"`
	BatchSize          int               `envconfig:"TRACEX_BATCH_SIZE" yaml:"batchSize" toml:"batchSize" json:"batchSize"`
	FlushIntervalMs    int               `envconfig:"TRACEX_FLUSH_INTERVAL_MS" yaml:"flushIntervalMs" toml:"flushIntervalMs" json:"flushIntervalMs"`
	AutoFlush          bool              `envconfig:"TRACEX_AUTO_FLUSH" yaml:"autoFlush" toml:"autoFlush" json:"autoFlush"`
	MaxConcurrentSends int               `envconfig:"TRACEX_MAX_CONCURRENT_SENDS" yaml:"maxConcurrentSends" toml:"maxConcurrentSends" json:"maxConcurrentSends"`
	Metadata           map[string]string `envconfig:"TRACEX_METADATA" yaml:"metadata" toml:"metadata" json:"metadata"`
}

// EncryptionConfig holds envelope encryption settings.
type EncryptionConfig struct {
	Enabled       bool   `envconfig:"TRACEX_ENCRYPTION_ENABLED" yaml:"enabled" toml:"enabled" json:"enabled"`
	KeysPath      string `envconfig:"TRACEX_KEYS_PATH" yaml:"keysPath" toml:"keysPath" json:"keysPath"`
	FacilitatorID string `envconfig:"TRACEX_FACILITATOR_ID" yaml:"facilitatorId" toml:"facilitatorId" json:"facilitatorId"`
	KeyBits       int    `envconfig:"TRACEX_KEY_BITS" yaml:"keyBits" toml:"keyBits" json:"keyBits"`
}

// PublicMetricsConfig holds anonymous summary publishing settings.
type PublicMetricsConfig struct {
	Enabled    bool   `envconfig:"TRACEX_PUBLIC_METRICS_ENABLED" yaml:"enabled" toml:"enabled" json:"enabled"`
	Period     string `envconfig:"TRACEX_PUBLIC_METRICS_PERIOD" yaml:"period" toml:"period" json:"period"`
	IntervalMs int    `envconfig:"TRACEX_PUBLIC_METRICS_INTERVAL_MS" yaml:"intervalMs" toml:"intervalMs" json:"intervalMs"`
	Samples    int    `envconfig:"TRACEX_PUBLIC_METRICS_SAMPLES" yaml:"samples" toml:"samples" json:"samples"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level" json:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development" json:"development"`
}

// ServerConfig holds the development collector server configuration.
type ServerConfig struct {
	Port              string `envconfig:"PORT" yaml:"port" toml:"port" json:"port"`
	Host              string `envconfig:"HOST" yaml:"host" toml:"host" json:"host"`
	APIKey            string `envconfig:"COLLECTOR_API_KEY" yaml:"apiKey" toml:"apiKey" json:"apiKey"`
	RegistrationKey   string `envconfig:"REGISTRATION_API_KEY" yaml:"registrationKey" toml:"registrationKey" json:"registrationKey"`
	RequestsPerSecond int    `envconfig:"COLLECTOR_RPS" yaml:"requestsPerSecond" toml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int    `envconfig:"COLLECTOR_BURST" yaml:"burst" toml:"burst" json:"burst"`
	StoreSize         int    `envconfig:"COLLECTOR_STORE_SIZE" yaml:"storeSize" toml:"storeSize" json:"storeSize"`
	PrivateKeysPath   string `envconfig:"COLLECTOR_PRIVATE_KEYS_PATH" yaml:"privateKeysPath" toml:"privateKeysPath" json:"privateKeysPath"`
}

// Load builds configuration from defaults, the optional file named by
// TRACEX_CONFIG_FILE, then environment variables, and validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile overlays a YAML, TOML or JSON file onto the current values.
// Keys absent from the file keep their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".json":
		err = sonic.ConfigStd.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			TimeoutMs:         30000,
			RetryAttempts:     3,
			RetryDelayMs:      1000,
			BreakerEnabled:    true,
			BreakerFailures:   5,
			BreakerCooldownMs: 30000,
		},
		Tracer: TracerConfig{
			BufferSize:         1000,
			BatchSize:          100,
			FlushIntervalMs:    5000,
			AutoFlush:          true,
			MaxConcurrentSends: 4,
		},
		Encryption: EncryptionConfig{
			KeysPath: ".tracex-keys.json",
			KeyBits:  2048,
		},
		PublicMetrics: PublicMetricsConfig{
			Period:     "24h",
			IntervalMs: 3600000,
			Samples:    1024,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Server: ServerConfig{
			Port:              "8080",
			Host:              "0.0.0.0",
			RequestsPerSecond: 100,
			Burst:             200,
			StoreSize:         10000,
		},
	}
}

// Validate checks value ranges and URLs.
func (c *Config) Validate() error {
	var problems []string

	if c.Tracer.BufferSize < 1 {
		problems = append(problems, "tracer.bufferSize must be at least 1")
	}
	if c.Tracer.BatchSize < 1 {
		problems = append(problems, "tracer.batchSize must be at least 1")
	}
	if c.Tracer.AutoFlush && c.Tracer.FlushIntervalMs < 1 {
		problems = append(problems, "tracer.flushIntervalMs must be positive when autoFlush is on")
	}
	if c.Tracer.MaxConcurrentSends < 1 {
		problems = append(problems, "tracer.maxConcurrentSends must be at least 1")
	}
	if c.API.TimeoutMs < 1 {
		problems = append(problems, "api.timeoutMs must be positive")
	}
	if c.API.RetryAttempts < 1 {
		problems = append(problems, "api.retryAttempts must be at least 1")
	}
	if c.API.RetryDelayMs < 0 || c.API.MaxRetryDelayMs < 0 {
		problems = append(problems, "api retry delays must not be negative")
	}
	if c.API.RateLimit < 0 {
		problems = append(problems, "api.rateLimit must not be negative")
	}
	for name, raw := range map[string]string{
		"api.url":        c.API.URL,
		"api.keysUrl":    c.API.KeysURL,
		"api.metricsUrl": c.API.MetricsURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("%s must be an absolute http(s) URL", name))
		}
	}
	if c.Encryption.Enabled && c.Encryption.KeyBits < 2048 {
		problems = append(problems, "encryption.keyBits must be at least 2048")
	}
	if c.PublicMetrics.Enabled && (c.PublicMetrics.Samples < 1 || c.PublicMetrics.IntervalMs < 1) {
		problems = append(problems, "publicMetrics samples and intervalMs must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Timeout is the per-attempt delivery timeout
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// RetryDelay is the base backoff delay
func (c APIConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// MaxRetryDelay caps a single backoff wait; zero means uncapped
func (c APIConfig) MaxRetryDelay() time.Duration {
	return time.Duration(c.MaxRetryDelayMs) * time.Millisecond
}

// BreakerCooldown is how long the breaker stays open
func (c APIConfig) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownMs) * time.Millisecond
}

// KeysEndpoint returns the key registration URL, derived from the
// traces URL when not set: /api/traces -> /api/keys/register.
func (c APIConfig) KeysEndpoint() string {
	if c.KeysURL != "" {
		return c.KeysURL
	}
	return resolve(c.URL, "keys/register")
}

// MetricsEndpoint returns the public metrics URL, derived like KeysEndpoint.
func (c APIConfig) MetricsEndpoint() string {
	if c.MetricsURL != "" {
		return c.MetricsURL
	}
	return resolve(c.URL, "metrics/publish")
}

// HealthEndpoint returns the collector health URL at the server root.
func (c APIConfig) HealthEndpoint() string {
	return resolve(c.URL, "/health")
}

// FlushInterval is the periodic flush period
func (c TracerConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

// Interval is the publishing period
func (c PublicMetricsConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Address returns host:port for the collector server
func (c ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func resolve(base, ref string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return u.ResolveReference(r).String()
}
