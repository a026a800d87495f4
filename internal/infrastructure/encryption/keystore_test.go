package encryption

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/tracex/internal/shared/types"
	"github.com/GriffinCanCode/tracex/internal/testutil"
)

func TestFileKeyStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "keys.json")
	store := NewFileKeyStore(path)

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrKeysNotFound)

	pair := testutil.KeyPair(t)
	require.NoError(t, store.Save(ctx, pair))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"publicKey"`)
	assert.Contains(t, string(data), `"privateKey"`)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, pair, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestFileKeyStoreRejectsIncompletePair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"publicKey":"pub"}`), 0o600))

	_, err := NewFileKeyStore(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrKeysNotFound)

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	_, err = NewFileKeyStore(path).Load(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeysNotFound)
}

func TestFileKeyStoreDefaultPath(t *testing.T) {
	assert.Equal(t, DefaultKeysPath, NewFileKeyStore("").Path())
}

func TestEnvKeyStore(t *testing.T) {
	ctx := context.Background()
	store := NewEnvKeyStore()

	t.Setenv(PublicKeyEnv, "")
	t.Setenv(PrivateKeyEnv, "")
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrKeysNotFound)

	t.Setenv(PublicKeyEnv, "pub")
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrKeysNotFound, "both keys are required")

	t.Setenv(PrivateKeyEnv, "priv")
	pair, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, &types.KeyPair{PublicKey: "pub", PrivateKey: "priv"}, pair)

	assert.ErrorIs(t, store.Save(ctx, pair), ErrReadOnlyStore)
}

func TestChainKeyStore(t *testing.T) {
	ctx := context.Background()
	t.Setenv(PublicKeyEnv, "")
	t.Setenv(PrivateKeyEnv, "")

	path := filepath.Join(t.TempDir(), "keys.json")
	chain := DefaultKeyStore(path, nil)

	_, err := chain.Load(ctx)
	assert.ErrorIs(t, err, ErrKeysNotFound)

	pair := testutil.KeyPair(t)
	require.NoError(t, chain.Save(ctx, pair), "the file store is writable")

	loaded, err := chain.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, pair.PublicKey, loaded.PublicKey)

	// Environment keys take precedence over the file
	t.Setenv(PublicKeyEnv, "env-pub")
	t.Setenv(PrivateKeyEnv, "env-priv")
	loaded, err = chain.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "env-pub", loaded.PublicKey)
}

func TestChainKeyStoreSkipsBrokenStores(t *testing.T) {
	ctx := context.Background()
	logger, logs := testutil.NewObservedLogger(zapcore.WarnLevel)

	memory := &MemoryKeyStore{}
	require.NoError(t, memory.Save(ctx, &types.KeyPair{PublicKey: "pub", PrivateKey: "priv"}))

	broken := &stubStore{loadErr: errors.New("disk on fire")}
	chain := NewChainKeyStore(logger, broken, memory)

	pair, err := chain.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pub", pair.PublicKey)
	assert.Equal(t, 1, logs.FilterMessage("Ignoring unreadable key store").Len())

	readOnly := NewChainKeyStore(nil, NewEnvKeyStore())
	assert.ErrorIs(t, readOnly.Save(ctx, pair), ErrReadOnlyStore)

	failing := NewChainKeyStore(nil, &stubStore{saveErr: errors.New("quota")}, &MemoryKeyStore{})
	assert.Error(t, failing.Save(ctx, pair))
}

type stubStore struct {
	mu      sync.Mutex
	pair    *types.KeyPair
	loadErr error
	saveErr error
	loads   int
	saves   int
}

func (s *stubStore) Load(ctx context.Context) (*types.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.pair == nil {
		return nil, ErrKeysNotFound
	}
	return s.pair, nil
}

func (s *stubStore) Save(ctx context.Context, pair *types.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.pair = pair
	return nil
}

func TestKeyManagerGeneratesOnce(t *testing.T) {
	ctx := context.Background()
	store := &stubStore{}
	m := NewKeyManager(store, &fakeProvider{}, 0, nil)

	var wg sync.WaitGroup
	pubs := make([]string, 8)
	for i := range pubs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pub, err := m.PublicKey(ctx)
			assert.NoError(t, err)
			pubs[i] = pub
		}(i)
	}
	wg.Wait()

	for _, pub := range pubs {
		assert.Equal(t, "pub", pub)
	}
	assert.Equal(t, 1, store.loads)
	assert.Equal(t, 1, store.saves)

	priv, err := m.PrivateKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "priv", priv)
}

func TestKeyManagerPrefersStoredPair(t *testing.T) {
	ctx := context.Background()
	stored := testutil.KeyPair(t)
	store := &stubStore{pair: stored}
	m := NewKeyManager(store, nil, 0, nil)

	pair, err := m.GetOrGenerate(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored.PublicKey, pair.PublicKey)
	assert.Zero(t, store.saves)
}

func TestKeyManagerSaveFailureIsNotFatal(t *testing.T) {
	logger, logs := testutil.NewObservedLogger(zapcore.WarnLevel)
	store := &stubStore{saveErr: errors.New("read-only filesystem")}
	m := NewKeyManager(store, &fakeProvider{}, 0, logger)

	pair, err := m.GetOrGenerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pub", pair.PublicKey)
	assert.Equal(t, 1, logs.FilterMessage("Failed to save keys").Len())
}

func TestKeyManagerSetAndClear(t *testing.T) {
	ctx := context.Background()
	store := &stubStore{pair: &types.KeyPair{PublicKey: "stored-pub", PrivateKey: "stored-priv"}}
	m := NewKeyManager(store, &fakeProvider{}, 0, nil)

	m.SetKeys(&types.KeyPair{PublicKey: "set-pub", PrivateKey: "set-priv"})
	pub, err := m.PublicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "set-pub", pub)
	assert.Zero(t, store.loads)

	m.ClearKeys()
	pub, err = m.PublicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stored-pub", pub)
	assert.Equal(t, 1, store.loads)
}

func TestKeyManagerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewKeyManager(NewFileKeyStore(filepath.Join(t.TempDir(), "keys.json")), &fakeProvider{}, 0, nil)
	_, err := m.GetOrGenerate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
