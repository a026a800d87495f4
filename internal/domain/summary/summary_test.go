package summary

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tracex/internal/shared/id"
	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

func span(ms int, status types.SpanStatus) types.SpanData {
	return types.SpanData{Name: "settle", Duration: int64(time.Duration(ms) * time.Millisecond), Status: status}
}

func TestSnapshot(t *testing.T) {
	agg := New(100)
	for i := 1; i <= 20; i++ {
		status := types.StatusSuccess
		if i%4 == 0 {
			status = types.StatusError
		}
		agg.Record(span(i*10, status))
	}

	now := time.UnixMilli(1700000000000)
	m := agg.Snapshot("fac_1", "", now)
	require.NotNil(t, m)

	assert.Equal(t, id.Anonymize("fac_1"), m.FacilitatorID)
	assert.NotEqual(t, "fac_1", m.FacilitatorID)
	assert.Equal(t, 20, m.TotalTransactions)
	assert.InDelta(t, 0.75, m.SuccessRate, 1e-9)
	assert.InDelta(t, 105.0, m.AvgLatency, 1e-9)
	assert.InDelta(t, 190.0, m.P95Latency, 1e-9)
	assert.Equal(t, DefaultPeriod, m.Period)
	assert.Equal(t, int64(1700000000000), m.Timestamp)
}

func TestSnapshotEmpty(t *testing.T) {
	assert.Nil(t, New(10).Snapshot("fac", "1h", time.Now()))
}

func TestWindowKeepsRecentLatencies(t *testing.T) {
	agg := New(3)
	for _, ms := range []int{1000, 1000, 10, 20, 30} {
		agg.Record(span(ms, types.StatusSuccess))
	}

	m := agg.Snapshot("fac", "1h", time.Now())
	require.NotNil(t, m)
	assert.Equal(t, 5, m.TotalTransactions, "counts are not windowed")
	assert.InDelta(t, 20.0, m.AvgLatency, 1e-9)
	assert.Equal(t, "1h", m.Period)
}

func TestReset(t *testing.T) {
	agg := New(10)
	agg.Record(span(5, types.StatusError))
	require.Equal(t, 1, agg.Count())

	agg.Reset()
	assert.Zero(t, agg.Count())
	assert.Nil(t, agg.Snapshot("fac", "", time.Now()))
}

func TestConcurrentRecord(t *testing.T) {
	agg := New(64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				agg.Record(span(i, types.StatusSuccess))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, agg.Count())
}
