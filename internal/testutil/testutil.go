// Package testutil provides testing utilities shared by package tests.
package testutil

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

// MockSender is a mock implementation of the tracer's Sender for testing.
type MockSender struct {
	mock.Mock
}

// SendTrace mocks the SendTrace method.
func (m *MockSender) SendTrace(ctx context.Context, trace *types.Trace) error {
	args := m.Called(ctx, trace)
	return args.Error(0)
}

// SendEncrypted mocks the SendEncrypted method.
func (m *MockSender) SendEncrypted(ctx context.Context, envelope *types.EncryptedTrace) error {
	args := m.Called(ctx, envelope)
	return args.Error(0)
}

// NewMockSender creates a mock sender that accepts everything by default.
func NewMockSender(t *testing.T) *MockSender {
	t.Helper()
	m := new(MockSender)

	m.On("SendTrace", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("SendEncrypted", mock.Anything, mock.Anything).Return(nil).Maybe()

	return m
}

// RecordingSender captures every delivered trace and envelope.
// Fail, when set, decides per trace whether delivery fails.
type RecordingSender struct {
	Fail func(traceID string) error

	mu        sync.Mutex
	traces    []*types.Trace
	envelopes []*types.EncryptedTrace
	signal    chan struct{}
}

// NewRecordingSender creates an empty recorder.
func NewRecordingSender() *RecordingSender {
	return &RecordingSender{signal: make(chan struct{}, 1024)}
}

// SendTrace records a plaintext trace.
func (r *RecordingSender) SendTrace(ctx context.Context, trace *types.Trace) error {
	if r.Fail != nil {
		if err := r.Fail(trace.TraceID); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.traces = append(r.traces, trace)
	r.mu.Unlock()
	r.notify()
	return nil
}

// SendEncrypted records an envelope.
func (r *RecordingSender) SendEncrypted(ctx context.Context, envelope *types.EncryptedTrace) error {
	if r.Fail != nil {
		if err := r.Fail(envelope.TraceID); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.envelopes = append(r.envelopes, envelope)
	r.mu.Unlock()
	r.notify()
	return nil
}

// Delivered returns a channel receiving one value per recorded delivery.
func (r *RecordingSender) Delivered() <-chan struct{} {
	return r.signal
}

// Traces returns the recorded plaintext traces.
func (r *RecordingSender) Traces() []*types.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.Trace(nil), r.traces...)
}

// Envelopes returns the recorded envelopes.
func (r *RecordingSender) Envelopes() []*types.EncryptedTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.EncryptedTrace(nil), r.envelopes...)
}

// SpanNames flattens recorded traces into span names.
func (r *RecordingSender) SpanNames() []string {
	var names []string
	for _, trace := range r.Traces() {
		for _, span := range trace.Spans {
			names = append(names, span.Name)
		}
	}
	return names
}

func (r *RecordingSender) notify() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

var (
	keyOnce  sync.Once
	keyPairs [2]*types.KeyPair
	keyErr   error
)

// KeyPair returns a cached 2048-bit RSA identity.
func KeyPair(t testing.TB) *types.KeyPair {
	t.Helper()
	return cachedPair(t, 0)
}

// OtherKeyPair returns a second cached identity distinct from KeyPair.
func OtherKeyPair(t testing.TB) *types.KeyPair {
	t.Helper()
	return cachedPair(t, 1)
}

func cachedPair(t testing.TB, i int) *types.KeyPair {
	keyOnce.Do(func() {
		for n := range keyPairs {
			keyPairs[n], keyErr = generatePair()
			if keyErr != nil {
				return
			}
		}
	})
	if keyErr != nil {
		t.Fatalf("generate test key pair: %v", keyErr)
	}
	pair := *keyPairs[i]
	return &pair
}

func generatePair() (*types.KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return &types.KeyPair{
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
	}, nil
}

// NewObservedLogger returns a logger whose entries can be inspected.
func NewObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}
