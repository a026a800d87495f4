// Package main is the entry point for the TraceX development collector.
//
// The collector accepts what a tracer delivers and keeps it in memory so
// integrations can be checked locally:
//
//	Tracer → POST /api/traces → bounded store → GET /api/traces
//
// Configuration:
//   - Environment variables (PORT, HOST, COLLECTOR_*, REGISTRATION_API_KEY)
//   - Optional config file named by TRACEX_CONFIG_FILE
//   - CLI flags (override both)
//
// Usage:
//
//	# Plain collector on :8080
//	./collector
//
//	# Decrypt envelopes with a facilitator key file, debug logs
//	./collector -port 3002 -keys .tracex-keys.json -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
