package encryption

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

// KeyManager owns the process identity. The pair is loaded or generated
// once and cached until ClearKeys.
type KeyManager struct {
	store    KeyStore
	provider CipherProvider
	bits     int
	logger   *zap.Logger

	mu   sync.Mutex
	keys *types.KeyPair
}

// NewKeyManager creates a manager. Nil store and provider fall back to
// DefaultKeyStore and StandardProvider; bits 0 means DefaultKeyBits.
func NewKeyManager(store KeyStore, provider CipherProvider, bits int, logger *zap.Logger) *KeyManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = DefaultKeyStore(DefaultKeysPath, logger)
	}
	if provider == nil {
		provider = NewStandardProvider()
	}
	if bits == 0 {
		bits = DefaultKeyBits
	}
	return &KeyManager{store: store, provider: provider, bits: bits, logger: logger}
}

// GetOrGenerate returns the cached pair, else the stored pair, else a
// newly generated one. A failure to persist a new pair is only logged.
func (m *KeyManager) GetOrGenerate(ctx context.Context) (*types.KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys != nil {
		return m.keys, nil
	}

	pair, err := m.store.Load(ctx)
	switch {
	case err == nil:
		m.keys = pair
		return pair, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case !errors.Is(err, ErrKeysNotFound):
		m.logger.Warn("Failed to load keys, generating a new pair", zap.Error(err))
	}

	pair, err = m.provider.GenerateKeyPair(m.bits)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	m.logger.Info("Generated new key pair", zap.Int("bits", m.bits))

	if err := m.store.Save(ctx, pair); err != nil {
		m.logger.Warn("Failed to save keys", zap.Error(err))
	}

	m.keys = pair
	return pair, nil
}

// PublicKey returns the PEM public key
func (m *KeyManager) PublicKey(ctx context.Context) (string, error) {
	pair, err := m.GetOrGenerate(ctx)
	if err != nil {
		return "", err
	}
	return pair.PublicKey, nil
}

// PrivateKey returns the PEM private key
func (m *KeyManager) PrivateKey(ctx context.Context) (string, error) {
	pair, err := m.GetOrGenerate(ctx)
	if err != nil {
		return "", err
	}
	return pair.PrivateKey, nil
}

// SetKeys installs a pair without touching the store
func (m *KeyManager) SetKeys(pair *types.KeyPair) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *pair
	m.keys = &stored
}

// ClearKeys drops the cached pair; the next call reloads from the store
func (m *KeyManager) ClearKeys() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys = nil
}
