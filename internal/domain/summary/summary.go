// Package summary aggregates completed spans into the anonymous public
// metrics a facilitator may publish: success rate, mean and p95 latency,
// and transaction count over a bounded sample window.
package summary

import (
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/tracex/internal/shared/id"
	"github.com/GriffinCanCode/tracex/internal/shared/ring"
	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

// DefaultPeriod labels published summaries when none is configured
const DefaultPeriod = "24h"

// Aggregator accumulates span outcomes. Latencies are kept in a fixed
// window of the most recent samples; counts cover everything since the
// last Reset.
type Aggregator struct {
	mu        sync.Mutex
	latencies *ring.Buffer[float64]
	total     int
	succeeded int
}

// New creates an aggregator keeping at most samples latencies
func New(samples int) *Aggregator {
	return &Aggregator{latencies: ring.New[float64](samples)}
}

// Record adds one completed span
func (a *Aggregator) Record(span types.SpanData) {
	latency := float64(span.Duration) / float64(time.Millisecond)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.latencies.Push(latency)
	a.total++
	if !span.Failed() {
		a.succeeded++
	}
}

// Count returns the spans recorded since the last reset
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Snapshot computes the public summary without resetting. The facilitator
// id is hashed; an empty window yields nil.
func (a *Aggregator) Snapshot(facilitatorID, period string, now time.Time) *types.PublicMetrics {
	a.mu.Lock()
	total, succeeded := a.total, a.succeeded
	samples := a.latencies.Items()
	a.mu.Unlock()

	if total == 0 {
		return nil
	}
	if period == "" {
		period = DefaultPeriod
	}

	slices.Sort(samples)
	return &types.PublicMetrics{
		FacilitatorID:     id.Anonymize(facilitatorID),
		SuccessRate:       float64(succeeded) / float64(total),
		AvgLatency:        stat.Mean(samples, nil),
		P95Latency:        stat.Quantile(0.95, stat.Empirical, samples, nil),
		TotalTransactions: total,
		Period:            period,
		Timestamp:         now.UnixMilli(),
	}
}

// Reset starts a new period
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.latencies.Clear()
	a.total = 0
	a.succeeded = 0
}
