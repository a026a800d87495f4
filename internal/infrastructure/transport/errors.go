package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrDeliveryFailed marks a trace or envelope the collector never accepted
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrRegistrationFailed marks a rejected or unreachable key registration
	ErrRegistrationFailed = errors.New("key registration failed")
	// ErrNoEndpoint is returned when the needed collector URL is not configured
	ErrNoEndpoint = errors.New("no collector endpoint configured")
)

// DeliveryError describes the final failure of a delivery after retries.
// It matches ErrDeliveryFailed and the underlying cause with errors.Is.
type DeliveryError struct {
	// Attempts is the number of HTTP attempts made, zero if none was
	Attempts int
	// StatusCode is the last HTTP status, zero on network errors
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("delivery failed after %d attempt(s): status %d: %v", e.Attempts, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("delivery failed after %d attempt(s): %v", e.Attempts, e.Err)
	default:
		return fmt.Sprintf("delivery failed after %d attempt(s)", e.Attempts)
	}
}

func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDeliveryFailed}
	}
	return []error{ErrDeliveryFailed, e.Err}
}
