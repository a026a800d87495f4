/*
Package monitoring provides Prometheus metrics for the pipeline and the
development collector.

# Pipeline Metrics

Each tracer owns a Pipeline bound to the registerer it was given (or a
private registry), covering completed spans, buffer overwrites, flushes,
chunk outcomes, delivery attempts and latency, encryption and key
registration outcomes, and breaker state.

# Collector Metrics

Collector carries HTTP request metrics plus counters for accepted traces,
registrations and published summaries, exposed through Handler.

# Usage

	pipeline := monitoring.NewPipeline(prometheus.DefaultRegisterer)
	pipeline.RecordFlush(monitoring.TriggerBatch)

	metrics := monitoring.NewCollector()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
