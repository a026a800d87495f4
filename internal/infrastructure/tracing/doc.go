/*
Package tracing records timed spans and ships them to the collector.

# Overview

A Tracer hands out Spans bound to its current trace id. Ending a span
pushes an immutable SpanData into a fixed-size ring buffer; when the
buffer holds BatchSize spans the background worker is signalled, and a
ticker flushes low-traffic periods every FlushInterval. A flush drains
the buffer, rotates the trace id and delivers the spans in chunks of at
most BatchSize, concurrently and independently. A chunk that still fails
after the transport's retries is logged and dropped.

With encryption enabled each chunk is sealed into an envelope
(AES-256-GCM payload, RSA-OAEP wrapped key) before delivery, and the
public key is registered with the collector on first use.

# Usage

	tracer := tracing.New(tracing.DefaultConfig(),
		tracing.WithSender(client),
		tracing.WithLogger(logger),
	)
	defer tracer.Shutdown(context.Background())

	span := tracer.StartSpan("settle_payment")
	span.AddAttribute("amount", types.Float(12.5))
	if err := settle(); err != nil {
		span.Fail(err)
	} else {
		span.Success()
	}

	// or
	err := tracer.Run("verify_payment", verify)

# Performance

Starting and ending a span takes a mutex and a ring push. It never
waits on delivery.
*/
package tracing
