// Package keys loads the collector's RSA private key, creating it on first
// start.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/deviceguard/internal/envelope"
	"github.com/dmitrijs2005/deviceguard/internal/filex"
)

// DefaultBits is the size of generated keys.
const DefaultBits = 3072

var (
	ErrNoPEMBlock     = errors.New("keys: no PEM block found")
	ErrUnsupportedKey = errors.New("keys: not an RSA private key")
	ErrKeyTooSmall    = errors.New("keys: RSA key too small")
)

// generateKey is a test seam for rsa.GenerateKey.
var generateKey = rsa.GenerateKey

// LoadOrGenerate reads an RSA private key from path. When the file does not
// exist a new key of the given size is generated and written there as
// PKCS#8 PEM with mode 0600. created reports whether a key was generated.
func LoadOrGenerate(path string, bits int) (key *rsa.PrivateKey, created bool, err error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err = ParsePrivateKeyPEM(data)
		return key, false, err
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("read private key: %w", err)
	}

	key, err = generateKey(rand.Reader, bits)
	if err != nil {
		return nil, false, fmt.Errorf("generate private key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, false, fmt.Errorf("marshal private key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	if dir := filepath.Dir(path); dir != "." {
		if _, err := filex.EnsurePrivateDir(dir); err != nil {
			return nil, false, err
		}
	}
	if err := filex.WriteFileAtomic(path, pemBytes, 0o600); err != nil {
		return nil, false, fmt.Errorf("write private key: %w", err)
	}
	return key, true, nil
}

// ParsePrivateKeyPEM accepts PKCS#1 ("RSA PRIVATE KEY") and PKCS#8
// ("PRIVATE KEY") encodings.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
		}
		key = k
	default:
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
		}
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrUnsupportedKey
		}
		key = rk
	}

	if key.N.BitLen() < envelope.MinRSABits {
		return nil, fmt.Errorf("%w: %d bits", ErrKeyTooSmall, key.N.BitLen())
	}
	return key, nil
}

// PublicKeyText is the body served on the public key route: Base64 of the
// SubjectPublicKeyInfo DER.
func PublicKeyText(key *rsa.PrivateKey) (string, error) {
	return envelope.EncodePublicKey(&key.PublicKey)
}
