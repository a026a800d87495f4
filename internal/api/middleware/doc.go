// Package middleware provides the collector's gin middleware: CORS,
// per-client rate limiting, API key checks and gzip request inflation.
package middleware
