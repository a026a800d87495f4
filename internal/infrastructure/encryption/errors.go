package encryption

import "errors"

var (
	// ErrEncryptionFailed wraps every failure while producing an envelope
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrDecryptionFailed wraps every failure while opening an envelope.
	// No partial plaintext is ever returned alongside it.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrInvalidKey is returned when PEM key material cannot be imported
	ErrInvalidKey = errors.New("invalid key")
	// ErrKeysNotFound is returned by a KeyStore holding no key pair
	ErrKeysNotFound = errors.New("keys not found")
	// ErrReadOnlyStore is returned by Save on stores that cannot persist
	ErrReadOnlyStore = errors.New("key store is read-only")
)
