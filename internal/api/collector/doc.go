// Package collector implements a development collector for tracer output.
//
// It accepts what a tracer delivers (plain traces, encrypted envelopes,
// public key registrations and public metrics), validates it, and keeps
// the most recent entries in a bounded in-memory store:
//
//	POST /api/traces          single trace or array, plain or encrypted
//	GET  /api/traces          ?facilitatorId=&limit=&offset=
//	GET  /api/traces/tags     ?facilitatorId=&limit=&minCount=&from=&to=
//	GET  /api/traces/stream   WebSocket live tail, ?facilitatorId=
//	POST /api/keys/register   {facilitatorId, publicKey}, X-API-Key
//	POST /api/metrics/publish
//	GET  /api/metrics/public  ?period=&limit=
//	GET  /health
//
// When configured with the facilitator's private key the collector opens
// envelopes on arrival so stored records can be inspected in plaintext.
// Nothing is persisted across restarts.
package collector
