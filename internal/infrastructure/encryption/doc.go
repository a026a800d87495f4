/*
Package encryption implements hybrid envelope encryption for traces.

# Scheme

Each trace is serialized to JSON and sealed with a fresh AES-256-GCM key
and 96-bit nonce. The 16-byte tag is appended to the ciphertext. The AES
key is wrapped with the recipient's RSA public key using OAEP with SHA-256
(MGF1 SHA-256, empty label). Byte fields are standard base64.

	encryptedData   = base64(ciphertext || tag)
	aesKeyEncrypted = base64(RSA-OAEP(key))
	iv              = base64(nonce)

The collector stores envelopes it cannot read; only the private key
holder can open them.

# Components

  - CipherProvider: primitive operations, injected so tests can use fakes
  - Pipeline: Encrypt and Decrypt of whole traces
  - KeyStore: FileKeyStore, EnvKeyStore, MemoryKeyStore, ChainKeyStore
  - KeyManager: cached load-or-generate of the process key pair

# Usage

	keys := encryption.NewKeyManager(nil, nil, 0, logger)
	pub, err := keys.PublicKey(ctx)

	pipeline := encryption.NewPipeline(nil)
	envelope, err := pipeline.Encrypt(trace, pub, facilitatorID)
*/
package encryption
