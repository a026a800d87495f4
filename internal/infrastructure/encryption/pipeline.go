package encryption

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

// Pipeline turns traces into hybrid-encrypted envelopes and back.
// It is safe for concurrent use when its provider is.
type Pipeline struct {
	provider CipherProvider
	now      func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithClock overrides the envelope timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a pipeline. A nil provider uses StandardProvider.
func NewPipeline(provider CipherProvider, opts ...Option) *Pipeline {
	if provider == nil {
		provider = NewStandardProvider()
	}
	p := &Pipeline{provider: provider, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provider returns the underlying cipher provider
func (p *Pipeline) Provider() CipherProvider {
	return p.provider
}

// Encrypt seals trace for the holder of publicKeyPEM. The symmetric key
// and nonce are generated per call and zeroed before returning.
func (p *Pipeline) Encrypt(trace *types.Trace, publicKeyPEM, facilitatorID string) (*types.EncryptedTrace, error) {
	plaintext, err := sonic.ConfigStd.Marshal(trace)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize trace: %w", ErrEncryptionFailed, err)
	}
	defer clear(plaintext)

	key, err := p.provider.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %w", ErrEncryptionFailed, err)
	}
	defer clear(key)

	nonce, err := p.provider.GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("%w: generate nonce: %w", ErrEncryptionFailed, err)
	}
	defer clear(nonce)

	sealed, err := p.provider.Seal(key, nonce, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: seal: %w", ErrEncryptionFailed, err)
	}

	wrapped, err := p.provider.WrapKey(publicKeyPEM, key)
	if err != nil {
		return nil, fmt.Errorf("%w: wrap key: %w", ErrEncryptionFailed, err)
	}

	return &types.EncryptedTrace{
		TraceID:         trace.TraceID,
		FacilitatorID:   facilitatorID,
		EncryptedData:   base64.StdEncoding.EncodeToString(sealed),
		AESKeyEncrypted: base64.StdEncoding.EncodeToString(wrapped),
		IV:              base64.StdEncoding.EncodeToString(nonce),
		Timestamp:       p.now().UnixMilli(),
	}, nil
}

// Decrypt opens an envelope with privateKeyPEM. Any failure, including a
// tag mismatch, malformed base64 or an unusable key, wraps ErrDecryptionFailed.
func (p *Pipeline) Decrypt(envelope *types.EncryptedTrace, privateKeyPEM string) (*types.Trace, error) {
	sealed, err := base64.StdEncoding.DecodeString(envelope.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: decode encryptedData: %w", ErrDecryptionFailed, err)
	}
	wrapped, err := base64.StdEncoding.DecodeString(envelope.AESKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: decode aesKeyEncrypted: %w", ErrDecryptionFailed, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(envelope.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: decode iv: %w", ErrDecryptionFailed, err)
	}

	key, err := p.provider.UnwrapKey(privateKeyPEM, wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap key: %w", ErrDecryptionFailed, err)
	}
	defer clear(key)

	plaintext, err := p.provider.Open(key, nonce, sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: open payload: %w", ErrDecryptionFailed, err)
	}

	var trace types.Trace
	if err := sonic.ConfigStd.Unmarshal(plaintext, &trace); err != nil {
		return nil, fmt.Errorf("%w: parse trace: %w", ErrDecryptionFailed, err)
	}
	return &trace, nil
}
