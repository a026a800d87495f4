// Package types provides the shared data structures of the telemetry pipeline.
//
// Core Types:
//   - SpanData: Immutable snapshot of a completed span
//   - Trace: Batch of spans grouped under one trace id
//   - EncryptedTrace: Hybrid-encrypted wire envelope of a Trace
//   - KeyPair: PEM encoded RSA identity used for envelopes
//   - PublicMetrics: Anonymized aggregate published to the collector
//
// Attribute Values:
//   - Value: Tagged variant (string, int, float, bool, nested map)
//   - Attributes: Ordered key/value list encoded as a JSON object
//
// Example Usage:
//
//	var attrs types.Attributes
//	attrs.Set("amount", types.Float(12.5))
//	attrs.Set("currency", types.String("USDC"))
package types
