package collector

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/tracex/internal/shared/ring"
	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

// Payload kinds
const (
	KindPlain     = "plain"
	KindEncrypted = "encrypted"
)

// ErrAlreadyRegistered is returned when a facilitator id already has a key
var ErrAlreadyRegistered = errors.New("facilitator already registered")

// Record is one accepted trace. Encrypted records carry the envelope and,
// when the collector holds the private key, the decrypted trace too.
type Record struct {
	TraceID       string                `json:"traceId"`
	FacilitatorID string                `json:"facilitatorId,omitempty"`
	Kind          string                `json:"kind"`
	Tags          []string              `json:"tags"`
	Envelope      *types.EncryptedTrace `json:"envelope,omitempty"`
	Trace         *types.Trace          `json:"trace,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
}

// TagCount is one row of the tag summary
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Store keeps the most recent records and metrics in fixed-size rings.
// Old entries are overwritten once a ring is full.
type Store struct {
	mu      sync.RWMutex
	records *ring.Buffer[Record]
	metrics *ring.Buffer[types.PublicMetrics]
	keys    map[string]string
}

// NewStore creates a store holding at most size records and size metrics
func NewStore(size int) *Store {
	return &Store{
		records: ring.New[Record](size),
		metrics: ring.New[types.PublicMetrics](size),
		keys:    make(map[string]string),
	}
}

// Add stores records and reports how many older ones were overwritten
func (s *Store) Add(records ...Record) (overwritten int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if !s.records.Push(r) {
			overwritten++
		}
	}
	return overwritten
}

// Traces returns a facilitator's records, newest first
func (s *Store) Traces(facilitatorID string, limit, offset int) []Record {
	s.mu.RLock()
	items := s.records.Items()
	s.mu.RUnlock()

	out := make([]Record, 0, min(limit, len(items)))
	skipped := 0
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		if items[i].FacilitatorID != facilitatorID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, items[i])
	}
	return out
}

// Len returns the number of held records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Size()
}

// TagSummary counts tags across held records, most frequent first.
// An empty facilitatorID counts every record.
func (s *Store) TagSummary(facilitatorID string, minCount, limit int, from, to time.Time) []TagCount {
	s.mu.RLock()
	items := s.records.Items()
	s.mu.RUnlock()

	counts := make(map[string]*TagCount)
	for _, r := range items {
		if facilitatorID != "" && r.FacilitatorID != facilitatorID {
			continue
		}
		if (!from.IsZero() && r.CreatedAt.Before(from)) || (!to.IsZero() && r.CreatedAt.After(to)) {
			continue
		}
		for _, tag := range r.Tags {
			key := strings.ToLower(tag)
			if tc, ok := counts[key]; ok {
				tc.Count++
				continue
			}
			counts[key] = &TagCount{Tag: tag, Count: 1}
		}
	}

	out := make([]TagCount, 0, len(counts))
	for _, tc := range counts {
		if tc.Count >= minCount {
			out = append(out, *tc)
		}
	}
	slices.SortFunc(out, func(a, b TagCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Tag, b.Tag)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RegisterKey stores a facilitator's public key. Re-registration fails
// with ErrAlreadyRegistered.
func (s *Store) RegisterKey(facilitatorID, publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[facilitatorID]; ok {
		return ErrAlreadyRegistered
	}
	s.keys[facilitatorID] = publicKey
	return nil
}

// PublicKey returns a registered key
func (s *Store) PublicKey(facilitatorID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[facilitatorID]
	return key, ok
}

// AddMetrics stores a published summary
func (s *Store) AddMetrics(m types.PublicMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.Push(m)
}

// PublicMetrics returns summaries for a period, newest first and then by
// success rate.
func (s *Store) PublicMetrics(period string, limit int) []types.PublicMetrics {
	s.mu.RLock()
	items := s.metrics.Items()
	s.mu.RUnlock()

	out := make([]types.PublicMetrics, 0, len(items))
	for _, m := range items {
		if m.Period == period {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b types.PublicMetrics) int {
		switch {
		case a.Timestamp != b.Timestamp:
			if a.Timestamp > b.Timestamp {
				return -1
			}
			return 1
		case a.SuccessRate > b.SuccessRate:
			return -1
		case a.SuccessRate < b.SuccessRate:
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
