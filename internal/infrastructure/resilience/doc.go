/*
Package resilience provides a circuit breaker for collector delivery.

# Overview

When the collector is down, every flush would otherwise spend its whole
retry budget before giving up. The breaker counts failed deliveries and,
once tripped, rejects sends immediately until a cooldown has passed.

# States

- Closed: Normal operation, deliveries pass through
- Open: Collector considered down, deliveries fail with ErrCircuitOpen
- Half-Open: A limited number of probe deliveries decide recovery

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

# Usage

	breaker := resilience.New("collector", resilience.Settings{
		Timeout:       30 * time.Second,
		ReadyToTrip:   resilience.ConsecutiveFailures(5),
		OnStateChange: resilience.LogTransitions(logger),
	})

	err := breaker.Execute(func() error {
		return deliver(ctx, payload)
	})
*/
package resilience
