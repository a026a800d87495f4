// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr by default so a process embedding the tracer keeps
// stdout for its own output.
//
// Leveled adapts a zap logger to the key/value interface expected by
// go-retryablehttp so retry diagnostics land in the same sink.
//
// Example Usage:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Collector starting", zap.String("port", "8080"))
//	logger.Error("Failed to deliver chunk", zap.Error(err))
package logging
