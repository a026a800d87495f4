// Package config provides 12-factor configuration for the tracer and the
// development collector.
//
// Values are layered: built-in defaults, then an optional YAML, TOML or
// JSON file named by TRACEX_CONFIG_FILE, then environment variables.
// Durations are expressed in milliseconds.
//
// Configuration Sections:
//   - API: Collector URL, credentials, retry and breaker policy
//   - Tracer: Buffer size, batch size, flush interval, metadata
//   - Encryption: Envelope encryption and key storage
//   - PublicMetrics: Anonymous summary publishing
//   - Logging: Log level and output format
//   - Server: Development collector listener
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Sending to %s every %s\n", cfg.API.URL, cfg.Tracer.FlushInterval())
//
// Environment Variables:
//   - TRACEX_API_URL, TRACEX_API_KEY, TRACEX_REGISTRATION_API_KEY
//   - TRACEX_TIMEOUT_MS, TRACEX_RETRY_ATTEMPTS, TRACEX_RETRY_DELAY_MS
//   - TRACEX_BUFFER_SIZE, TRACEX_BATCH_SIZE, TRACEX_FLUSH_INTERVAL_MS, TRACEX_AUTO_FLUSH
//   - TRACEX_ENCRYPTION_ENABLED, TRACEX_KEYS_PATH, TRACEX_FACILITATOR_ID
//   - TRACEX_COMPRESS, TRACEX_TAGS, TRACEX_RATE_LIMIT, TRACEX_METADATA
//   - LOG_LEVEL, LOG_DEV, PORT, HOST
package config
