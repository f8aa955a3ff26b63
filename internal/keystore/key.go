package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/godaddy/asherah/go/securememory"
)

// Key is a handle to a stored symmetric key. The material lives in a locked
// securememory.Secret; callers encrypt and decrypt through the handle and
// supply the IV themselves.
type Key struct {
	alias       string
	fingerprint string
	secret      securememory.Secret
}

// newKey moves material into a secret. factory.New wipes material.
func newKey(alias string, material []byte, factory securememory.SecretFactory) (*Key, error) {
	if len(material) != KeySize {
		return nil, fmt.Errorf("%w: key %s has %d bytes", ErrKeyStoreUnavailable, alias, len(material))
	}

	sum := sha256.Sum256(material)
	secret, err := factory.New(material)
	if err != nil {
		return nil, fmt.Errorf("%w: protect key %s: %v", ErrKeyStoreUnavailable, alias, err)
	}

	return &Key{
		alias:       alias,
		fingerprint: hex.EncodeToString(sum[:8]),
		secret:      secret,
	}, nil
}

func (k *Key) Alias() string { return k.alias }

// Fingerprint identifies the key in logs without revealing it.
func (k *Key) Fingerprint() string { return k.fingerprint }

// Seal encrypts plaintext with AES-GCM using iv as the nonce. The
// authentication tag is appended to the returned ciphertext.
func (k *Key) Seal(iv, plaintext []byte) ([]byte, error) {
	return k.secret.WithBytesFunc(func(b []byte) ([]byte, error) {
		aead, err := newAEAD(b, len(iv))
		if err != nil {
			return nil, err
		}
		return aead.Seal(nil, iv, plaintext, nil), nil
	})
}

// Open reverses Seal.
func (k *Key) Open(iv, ciphertext []byte) ([]byte, error) {
	return k.secret.WithBytesFunc(func(b []byte) ([]byte, error) {
		aead, err := newAEAD(b, len(iv))
		if err != nil {
			return nil, err
		}
		return aead.Open(nil, iv, ciphertext, nil)
	})
}

// Close releases the protected memory. The handle is unusable afterwards.
func (k *Key) Close() error {
	return k.secret.Close()
}

func newAEAD(key []byte, nonceSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}
