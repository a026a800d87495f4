package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

const (
	// KeySize is the AES-256 key length in bytes
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes
	NonceSize = 12
	// TagSize is the GCM authentication tag length appended to ciphertext
	TagSize = 16
	// DefaultKeyBits is the RSA modulus size for generated identities
	DefaultKeyBits = 2048
)

// CipherProvider supplies the cryptographic primitives of the hybrid scheme.
// Keys cross the interface as PEM text so callers never depend on a
// particular crypto library.
type CipherProvider interface {
	// GenerateKey returns a fresh single-use symmetric key
	GenerateKey() ([]byte, error)
	// GenerateNonce returns a fresh single-use nonce
	GenerateNonce() ([]byte, error)
	// Seal encrypts and authenticates plaintext, returning ciphertext||tag
	Seal(key, nonce, plaintext []byte) ([]byte, error)
	// Open verifies and decrypts ciphertext||tag
	Open(key, nonce, sealed []byte) ([]byte, error)
	// WrapKey encrypts a symmetric key for the holder of publicKeyPEM
	WrapKey(publicKeyPEM string, key []byte) ([]byte, error)
	// UnwrapKey recovers a symmetric key with privateKeyPEM
	UnwrapKey(privateKeyPEM string, wrapped []byte) ([]byte, error)
	// GenerateKeyPair creates a new PEM encoded identity
	GenerateKeyPair(bits int) (*types.KeyPair, error)
}

// StandardProvider implements CipherProvider with AES-256-GCM and
// RSA-OAEP using SHA-256 for both the hash and MGF1. Parsed keys are
// cached by their PEM text.
type StandardProvider struct {
	publicKeys  sync.Map // string -> *rsa.PublicKey
	privateKeys sync.Map // string -> *rsa.PrivateKey
}

// NewStandardProvider creates the production provider
func NewStandardProvider() *StandardProvider {
	return &StandardProvider{}
}

func (p *StandardProvider) GenerateKey() ([]byte, error) {
	return randomBytes(KeySize)
}

func (p *StandardProvider) GenerateNonce() ([]byte, error) {
	return randomBytes(NonceSize)
}

func (p *StandardProvider) Seal(key, nonce, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

func (p *StandardProvider) Open(key, nonce, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	if len(sealed) < gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext shorter than the %d byte tag", gcm.Overhead())
	}
	return gcm.Open(nil, nonce, sealed, nil)
}

func (p *StandardProvider) WrapKey(publicKeyPEM string, key []byte) ([]byte, error) {
	pub, err := p.publicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
}

func (p *StandardProvider) UnwrapKey(privateKeyPEM string, wrapped []byte) ([]byte, error) {
	priv, err := p.privateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
}

func (p *StandardProvider) GenerateKeyPair(bits int) (*types.KeyPair, error) {
	if bits == 0 {
		bits = DefaultKeyBits
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return EncodeKeyPair(priv)
}

func (p *StandardProvider) publicKey(pemText string) (*rsa.PublicKey, error) {
	if cached, ok := p.publicKeys.Load(pemText); ok {
		return cached.(*rsa.PublicKey), nil
	}
	pub, err := ParsePublicKey(pemText)
	if err != nil {
		return nil, err
	}
	p.publicKeys.Store(pemText, pub)
	return pub, nil
}

func (p *StandardProvider) privateKey(pemText string) (*rsa.PrivateKey, error) {
	if cached, ok := p.privateKeys.Load(pemText); ok {
		return cached.(*rsa.PrivateKey), nil
	}
	priv, err := ParsePrivateKey(pemText)
	if err != nil {
		return nil, err
	}
	p.privateKeys.Store(pemText, priv)
	return priv, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ParsePublicKey imports an RSA public key from SPKI ("PUBLIC KEY") or
// PKCS#1 ("RSA PUBLIC KEY") PEM.
func ParsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidKey)
		}
		return pub, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrInvalidKey, block.Type)
	}
}

// ParsePrivateKey imports an RSA private key from PKCS#8 ("PRIVATE KEY")
// or PKCS#1 ("RSA PRIVATE KEY") PEM.
func ParsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA private key", ErrInvalidKey)
		}
		return priv, nil
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrInvalidKey, block.Type)
	}
}

// EncodeKeyPair exports a private key as SPKI public and PKCS#8 private PEM
func EncodeKeyPair(priv *rsa.PrivateKey) (*types.KeyPair, error) {
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	return &types.KeyPair{
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
	}, nil
}
