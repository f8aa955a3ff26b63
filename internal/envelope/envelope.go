package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/deviceguard/internal/common"
)

// SessionKeySize is the AES-256 session key length.
const SessionKeySize = 32

// Envelope is the upload body.
type Envelope struct {
	EncryptedData string `json:"encrypted_data"`
	EncryptedKey  string `json:"encrypted_key"`
}

// Sealer encrypts payloads for a collector. It holds no per-call state and is
// safe for concurrent use.
type Sealer struct {
	scheme Scheme
	rand   io.Reader
}

// NewSealer returns a Sealer using scheme.
func NewSealer(scheme Scheme) *Sealer {
	return &Sealer{scheme: scheme, rand: rand.Reader}
}

// Scheme reports the sealer's protocol parameters.
func (s *Sealer) Scheme() Scheme { return s.scheme }

// Seal encrypts plaintext under a fresh session key and wraps that key for
// pub. The session key is zeroed before Seal returns.
func (s *Sealer) Seal(plaintext []byte, pub *rsa.PublicKey) (*Envelope, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: nil key", ErrInvalidPublicKey)
	}

	sessionKey := make([]byte, SessionKeySize)
	defer common.WipeByteArray(sessionKey)
	if _, err := io.ReadFull(s.rand, sessionKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGenFailed, err)
	}

	var data []byte
	var err error
	switch s.scheme {
	case SchemeOAEPGCM:
		data, err = sealGCM(s.rand, sessionKey, plaintext)
	case SchemeLegacyPKCS1ECB:
		data, err = sealECB(sessionKey, plaintext)
	default:
		err = fmt.Errorf("unsupported scheme %s", s.scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipherInitFailed, err)
	}

	var wrapped []byte
	switch s.scheme {
	case SchemeOAEPGCM:
		wrapped, err = rsa.EncryptOAEP(sha256.New(), s.rand, pub, sessionKey, nil)
	default:
		wrapped, err = rsa.EncryptPKCS1v15(s.rand, pub, sessionKey)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: wrap key: %v", ErrCipherInitFailed, err)
	}

	return &Envelope{
		EncryptedData: base64.RawURLEncoding.EncodeToString(data),
		EncryptedKey:  base64.RawURLEncoding.EncodeToString(wrapped),
	}, nil
}

// Opener is the collector side of Sealer.
type Opener struct {
	scheme Scheme
	priv   *rsa.PrivateKey
}

// NewOpener returns an Opener for envelopes sealed with scheme against
// priv's public half.
func NewOpener(scheme Scheme, priv *rsa.PrivateKey) *Opener {
	return &Opener{scheme: scheme, priv: priv}
}

func (o *Opener) Scheme() Scheme { return o.scheme }

// UnwrapKey returns the session key carried by env.
func (o *Opener) UnwrapKey(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrOpenFailed)
	}
	wrapped, err := decodeField(env.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypted_key: %v", ErrOpenFailed, err)
	}

	var key []byte
	switch o.scheme {
	case SchemeOAEPGCM:
		key, err = rsa.DecryptOAEP(sha256.New(), nil, o.priv, wrapped, nil)
	default:
		key, err = rsa.DecryptPKCS1v15(nil, o.priv, wrapped)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap key: %v", ErrOpenFailed, err)
	}
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("%w: session key is %d bytes", ErrOpenFailed, len(key))
	}
	return key, nil
}

// Open returns the plaintext carried by env.
func (o *Opener) Open(env *Envelope) ([]byte, error) {
	key, err := o.UnwrapKey(env)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	return o.Decrypt(key, env.EncryptedData)
}

// Decrypt decodes encryptedData and decrypts it with an already unwrapped
// session key.
func (o *Opener) Decrypt(sessionKey []byte, encryptedData string) ([]byte, error) {
	data, err := decodeField(encryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypted_data: %v", ErrOpenFailed, err)
	}

	var plaintext []byte
	switch o.scheme {
	case SchemeOAEPGCM:
		plaintext, err = openGCM(sessionKey, data)
	default:
		plaintext, err = openECB(sessionKey, data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	return plaintext, nil
}

// decodeField accepts base64url with or without padding.
func decodeField(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func sealGCM(r io.Reader, key, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func openGCM(key, data []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
