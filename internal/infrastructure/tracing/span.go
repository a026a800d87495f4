package tracing

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

// Clock returns a monotonic reading in nanoseconds
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function to Clock
type ClockFunc func() int64

func (f ClockFunc) Now() int64 { return f() }

var origin = time.Now()

type monotonicClock struct{}

// Now reads Go's monotonic clock relative to process start. It is not
// wall-clock time and only differences between readings are meaningful.
func (monotonicClock) Now() int64 {
	return int64(time.Since(origin))
}

// MonotonicClock is the default span clock
var MonotonicClock Clock = monotonicClock{}

// Span is a single timed operation. It moves from open to ended exactly
// once; later completion calls and attribute writes are ignored.
type Span struct {
	name    string
	traceID string
	start   int64
	clock   Clock
	onEnd   func(types.SpanData)

	mu    sync.Mutex
	ended bool
	attrs types.Attributes
}

func newSpan(name, traceID string, clock Clock, onEnd func(types.SpanData)) *Span {
	return &Span{
		name:    name,
		traceID: traceID,
		start:   clock.Now(),
		clock:   clock,
		onEnd:   onEnd,
	}
}

// Name returns the span name
func (s *Span) Name() string {
	return s.name
}

// TraceID returns the trace id current when the span started
func (s *Span) TraceID() string {
	return s.traceID
}

// IsEnded reports whether the span has completed
func (s *Span) IsEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// AddAttribute sets key, replacing an earlier value in place.
// It is a no-op once the span has ended.
func (s *Span) AddAttribute(key string, value types.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.attrs.Set(key, value)
}

// SetAttributes adds several attributes in order
func (s *Span) SetAttributes(attrs ...types.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	for _, a := range attrs {
		s.attrs.Set(a.Key, a.Value)
	}
}

// Success ends the span with status success
func (s *Span) Success() {
	s.End(types.StatusSuccess, nil)
}

// Fail ends the span with status error, describing err
func (s *Span) Fail(err error) {
	s.End(types.StatusError, errorData(err))
}

// FailWithData ends the span with status error and the given details
func (s *Span) FailWithData(data types.ErrorData) {
	s.End(types.StatusError, &data)
}

// End completes the span. Only the first call has any effect.
func (s *Span) End(status types.SpanStatus, errData *types.ErrorData) {
	end := s.clock.Now()

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	data := types.SpanData{
		Name:       s.name,
		StartTime:  s.start,
		EndTime:    end,
		Duration:   end - s.start,
		Status:     status,
		Error:      errData,
		Attributes: s.attrs,
	}
	s.attrs = nil
	s.mu.Unlock()

	if s.onEnd != nil {
		s.onEnd(data)
	}
}

// Wrap runs fn and ends the span with its outcome. The error is returned
// unchanged. A panic fails the span with the stack and is re-raised.
func (s *Span) Wrap(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.FailWithData(types.ErrorData{
				Message: fmt.Sprint(r),
				Code:    "panic",
				Stack:   string(debug.Stack()),
			})
			panic(r)
		}
	}()

	if err = fn(); err != nil {
		s.Fail(err)
		return err
	}
	s.Success()
	return nil
}

// WrapValue is Wrap for functions returning a value
func WrapValue[T any](s *Span, fn func() (T, error)) (T, error) {
	var out T
	err := s.Wrap(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// coder is implemented by errors carrying a machine readable code
type coder interface {
	Code() string
}

func errorData(err error) *types.ErrorData {
	if err == nil {
		return &types.ErrorData{Message: "unknown error"}
	}
	data := &types.ErrorData{Message: err.Error()}
	var c coder
	if errors.As(err, &c) {
		data.Code = c.Code()
	}
	return data
}
