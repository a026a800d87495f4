// Package id provides identifier generation for the telemetry pipeline.
//
// Trace ids are random UUIDv4 strings so collectors and dashboards can
// treat them as opaque keys. Facilitator ids are either configured or
// derived from the public key, and are hashed before they leave the
// process in anonymous summaries.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// FacilitatorPrefix marks facilitator ids derived from a public key
const FacilitatorPrefix = "fac"

// Generator produces trace ids
type Generator func() string

// NewTraceID generates a random trace id
func NewTraceID() string {
	return uuid.NewString()
}

// IsValid checks if an id string is a valid UUID
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Sequence returns a deterministic generator for tests: prefix-1, prefix-2, ...
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// FacilitatorFromKey derives a stable facilitator id from a PEM public key
func FacilitatorFromKey(publicKeyPEM string) string {
	return fmt.Sprintf("%s_%s", FacilitatorPrefix, Short(Default().HashString(publicKeyPEM), 16))
}

// Anonymize hashes a facilitator id for public aggregates
func Anonymize(facilitatorID string) string {
	return Default().HashString(facilitatorID)
}
