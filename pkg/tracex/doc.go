// Package tracex records timed spans in a payment service and ships them
// to a collector in batches, optionally sealed with hybrid AES-256-GCM and
// RSA-OAEP encryption.
//
// A Client is configured from TRACEX_* environment variables or a config
// file:
//
//	client, err := tracex.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Shutdown(context.Background())
//
//	err = client.Run("payment.verify", func() error {
//	    return verify(ctx, payment)
//	})
//
// Spans are buffered in a fixed-size ring. Completing a span never blocks
// on the network; delivery happens on a background worker when a batch
// fills, on the flush interval, on Flush, and at Shutdown. A collector that
// is down costs retries and dropped batches, never caller latency.
package tracex
