package encryption

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

const (
	// DefaultKeysPath is where FileKeyStore keeps the key pair
	DefaultKeysPath = ".tracex-keys.json"
	// PublicKeyEnv and PrivateKeyEnv hold PEM keys for EnvKeyStore
	PublicKeyEnv  = "TRACEX_PUBLIC_KEY"
	PrivateKeyEnv = "TRACEX_PRIVATE_KEY"
)

// KeyStore loads and persists a key pair.
// Load returns ErrKeysNotFound when the store holds no complete pair.
type KeyStore interface {
	Load(ctx context.Context) (*types.KeyPair, error)
	Save(ctx context.Context, pair *types.KeyPair) error
}

// FileKeyStore keeps the pair as JSON {"publicKey","privateKey"} readable
// only by the owner.
type FileKeyStore struct {
	path string
}

// NewFileKeyStore creates a file store. An empty path uses DefaultKeysPath.
func NewFileKeyStore(path string) *FileKeyStore {
	if path == "" {
		path = DefaultKeysPath
	}
	return &FileKeyStore{path: path}
}

// Path returns the backing file path
func (s *FileKeyStore) Path() string {
	return s.path
}

func (s *FileKeyStore) Load(ctx context.Context) (*types.KeyPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrKeysNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	var pair types.KeyPair
	if err := sonic.ConfigStd.Unmarshal(data, &pair); err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", s.path, err)
	}
	if pair.PublicKey == "" || pair.PrivateKey == "" {
		return nil, ErrKeysNotFound
	}
	return &pair, nil
}

// Save writes the pair atomically with mode 0600
func (s *FileKeyStore) Save(ctx context.Context, pair *types.KeyPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := sonic.ConfigStd.MarshalIndent(pair, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key pair: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tracex-keys-*")
	if err != nil {
		return fmt.Errorf("create temp key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod key file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close key file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("install key file: %w", err)
	}
	return nil
}

// EnvKeyStore reads PEM keys from environment variables. It cannot save.
type EnvKeyStore struct {
	PublicVar  string
	PrivateVar string
}

// NewEnvKeyStore reads TRACEX_PUBLIC_KEY and TRACEX_PRIVATE_KEY
func NewEnvKeyStore() *EnvKeyStore {
	return &EnvKeyStore{PublicVar: PublicKeyEnv, PrivateVar: PrivateKeyEnv}
}

func (s *EnvKeyStore) Load(ctx context.Context) (*types.KeyPair, error) {
	pub, priv := os.Getenv(s.PublicVar), os.Getenv(s.PrivateVar)
	if pub == "" || priv == "" {
		return nil, ErrKeysNotFound
	}
	return &types.KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

func (s *EnvKeyStore) Save(ctx context.Context, pair *types.KeyPair) error {
	return ErrReadOnlyStore
}

// MemoryKeyStore holds a pair in process memory
type MemoryKeyStore struct {
	mu   sync.Mutex
	pair *types.KeyPair
}

func (s *MemoryKeyStore) Load(ctx context.Context) (*types.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pair == nil {
		return nil, ErrKeysNotFound
	}
	pair := *s.pair
	return &pair, nil
}

func (s *MemoryKeyStore) Save(ctx context.Context, pair *types.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *pair
	s.pair = &stored
	return nil
}

// ChainKeyStore loads from the first store holding a pair and saves to
// every writable store. Load errors other than ErrKeysNotFound are logged
// and skipped.
type ChainKeyStore struct {
	stores []KeyStore
	logger *zap.Logger
}

// NewChainKeyStore creates a chain trying stores in order
func NewChainKeyStore(logger *zap.Logger, stores ...KeyStore) *ChainKeyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainKeyStore{stores: stores, logger: logger}
}

// DefaultKeyStore checks the environment first, then the key file
func DefaultKeyStore(path string, logger *zap.Logger) *ChainKeyStore {
	return NewChainKeyStore(logger, NewEnvKeyStore(), NewFileKeyStore(path))
}

func (c *ChainKeyStore) Load(ctx context.Context) (*types.KeyPair, error) {
	for _, store := range c.stores {
		pair, err := store.Load(ctx)
		if err == nil {
			return pair, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, ErrKeysNotFound) {
			c.logger.Warn("Ignoring unreadable key store", zap.String("store", fmt.Sprintf("%T", store)), zap.Error(err))
		}
	}
	return nil, ErrKeysNotFound
}

func (c *ChainKeyStore) Save(ctx context.Context, pair *types.KeyPair) error {
	saved := false
	var errs []error
	for _, store := range c.stores {
		err := store.Save(ctx, pair)
		switch {
		case err == nil:
			saved = true
		case errors.Is(err, ErrReadOnlyStore):
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if !saved {
		return ErrReadOnlyStore
	}
	return nil
}
