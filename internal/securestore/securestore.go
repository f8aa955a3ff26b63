// Package securestore writes and reads self-contained encrypted files under
// a long-lived key from the agent's key store.
//
// File layout: a 16-byte IV followed by the AES-256-GCM ciphertext (with its
// tag). There is no header, length field or checksum.
package securestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/common"
	"github.com/dmitrijs2005/deviceguard/internal/filex"
	"github.com/dmitrijs2005/deviceguard/internal/keystore"
	"github.com/dmitrijs2005/deviceguard/internal/logging"
	"github.com/rcrowley/go-metrics"
)

// IVSize is the length of the IV prefix.
const IVSize = 16

var (
	ErrKeyStoreUnavailable = keystore.ErrKeyStoreUnavailable
	ErrTruncated           = errors.New("securestore: file shorter than IV")
	ErrDecryptFailed       = errors.New("securestore: decrypt failed")
	ErrIOFailure           = errors.New("securestore: i/o failure")
	ErrEncryptFailed       = errors.New("securestore: encrypt failed")
)

// randomBytes is a seam for the IV source.
var randomBytes = common.RandomBytes

var (
	saveTimer    = metrics.GetOrRegisterTimer("securestore.save", nil)
	decryptTimer = metrics.GetOrRegisterTimer("securestore.decrypt", nil)
	failCounter  = metrics.GetOrRegisterCounter("securestore.failures", nil)
)

// KeyProvider yields the store's key.
type KeyProvider interface {
	GetOrCreateKey(ctx context.Context, alias string) (*keystore.Key, error)
}

// Store encrypts files with the key registered under one alias. Files must
// be decrypted with the alias that encrypted them.
type Store struct {
	keys  KeyProvider
	alias string
	log   logging.Logger
}

func New(keys KeyProvider, alias string, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{
		keys:  keys,
		alias: alias,
		log:   log.With("module", "securestore", "alias", alias),
	}
}

// EncryptAndSave encrypts plaintext and replaces path with IV||ciphertext.
func (s *Store) EncryptAndSave(ctx context.Context, path string, plaintext []byte) error {
	defer saveTimer.UpdateSince(time.Now())

	err := s.encryptAndSave(ctx, path, plaintext)
	if err != nil {
		failCounter.Inc(1)
		s.log.Error(ctx, "encrypt and save failed", "path", path, "error", err)
		return err
	}
	s.log.Info(ctx, "encrypted file saved", "path", path, "bytes", len(plaintext))
	return nil
}

func (s *Store) encryptAndSave(ctx context.Context, path string, plaintext []byte) error {
	key, err := s.keys.GetOrCreateKey(ctx, s.alias)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyStoreUnavailable, err)
	}

	iv, err := randomBytes(IVSize)
	if err != nil {
		return fmt.Errorf("%w: generate iv: %v", ErrIOFailure, err)
	}

	ciphertext, err := key.Seal(iv, plaintext)
	if err != nil {
		return fmt.Errorf("%w: seal: %v", ErrEncryptFailed, err)
	}

	out := make([]byte, 0, IVSize+len(ciphertext))
	out = append(out, iv...)
	out = append(out, ciphertext...)

	if err := filex.WriteFileAtomic(path, out, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

// Decrypt reads path and returns the plaintext stored by EncryptAndSave.
func (s *Store) Decrypt(ctx context.Context, path string) ([]byte, error) {
	defer decryptTimer.UpdateSince(time.Now())

	plaintext, err := s.decrypt(ctx, path)
	if err != nil {
		failCounter.Inc(1)
		s.log.Error(ctx, "decrypt failed", "path", path, "error", err)
		return nil, err
	}
	return plaintext, nil
}

func (s *Store) decrypt(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if len(data) < IVSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}

	key, err := s.keys.GetOrCreateKey(ctx, s.alias)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyStoreUnavailable, err)
	}

	iv, ciphertext := data[:IVSize], data[IVSize:]
	plaintext, err := key.Open(iv, ciphertext)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
