/*
Package transport delivers traces to the collector over HTTP.

Deliveries go through go-retryablehttp with exponential backoff
(delay, 2*delay, 4*delay, ...), a per-attempt timeout, an optional rate
limit and a circuit breaker. Any network error or non-2xx response is
retried until the attempt budget is spent, then surfaced as a
*DeliveryError.

Key registration, public metrics and health checks are single-shot
resty calls:

	client, err := transport.New(cfg.API, transport.WithLogger(log))
	if err != nil {
		return err
	}
	if err := client.SendTrace(ctx, trace); err != nil {
		log.Warn("trace dropped", zap.Error(err))
	}
*/
package transport
