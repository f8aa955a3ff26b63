// Package keystore is the agent's platform key store: named symmetric keys
// that are created once, reused forever and never handed out in raw form.
package keystore

import (
	"context"
	"errors"
	"sync"
)

// KeySize is the length of every key material the store holds.
const KeySize = 32

var (
	// ErrKeyStoreUnavailable means the backing store could not be opened,
	// unlocked, read or written.
	ErrKeyStoreUnavailable = errors.New("keystore: unavailable")

	// ErrKeyNotFound is returned by Store.Load for an unknown alias.
	ErrKeyNotFound = errors.New("keystore: key not found")
)

// Store persists raw key material by alias.
type Store interface {
	// Load returns the material stored under alias or ErrKeyNotFound.
	Load(ctx context.Context, alias string) ([]byte, error)

	// Create stores material under alias if the alias is free. It reports
	// false, with a nil error, when another writer got there first.
	Create(ctx context.Context, alias string, material []byte) (bool, error)
}

// MemoryStore keeps keys for the life of the process.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, alias string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.keys[alias]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), m...), nil
}

func (s *MemoryStore) Create(_ context.Context, alias string, material []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[alias]; ok {
		return false, nil
	}
	s.keys[alias] = append([]byte(nil), material...)
	return true, nil
}
