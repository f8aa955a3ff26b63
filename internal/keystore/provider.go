package keystore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/deviceguard/internal/common"
	"github.com/dmitrijs2005/deviceguard/internal/logging"
	"github.com/godaddy/asherah/go/securememory"
	"github.com/godaddy/asherah/go/securememory/memguard"
)

// Provider hands out Key handles, creating keys on first use. One Provider
// should serve the whole process.
type Provider struct {
	store   Store
	factory securememory.SecretFactory
	log     logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	keys  map[string]*Key
}

// Option configures a Provider.
type Option func(*Provider)

// WithSecretFactory replaces the memguard-backed secret factory.
func WithSecretFactory(f securememory.SecretFactory) Option {
	return func(p *Provider) { p.factory = f }
}

// WithLogger sets the provider's logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Provider) { p.log = l }
}

func NewProvider(store Store, opts ...Option) *Provider {
	p := &Provider{
		store:   store,
		factory: new(memguard.SecretFactory),
		log:     logging.Nop(),
		locks:   make(map[string]*sync.Mutex),
		keys:    make(map[string]*Key),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("module", "keystore")
	return p
}

func (p *Provider) aliasLock(alias string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.locks[alias]
	if !ok {
		l = new(sync.Mutex)
		p.locks[alias] = l
	}
	return l
}

// GetOrCreateKey returns the key stored under alias, generating and storing a
// new one if there is none. Concurrent callers, in this process or another
// one sharing the store, all end up with the first writer's key.
func (p *Provider) GetOrCreateKey(ctx context.Context, alias string) (*Key, error) {
	l := p.aliasLock(alias)
	l.Lock()
	defer l.Unlock()

	p.mu.Lock()
	cached, ok := p.keys[alias]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	material, err := p.loadOrCreate(ctx, alias)
	if err != nil {
		return nil, err
	}

	key, err := newKey(alias, material, p.factory)
	if err != nil {
		common.WipeByteArray(material)
		return nil, err
	}

	p.mu.Lock()
	p.keys[alias] = key
	p.mu.Unlock()

	p.log.Debug(ctx, "key ready", "alias", alias, "fingerprint", key.Fingerprint())
	return key, nil
}

func (p *Provider) loadOrCreate(ctx context.Context, alias string) ([]byte, error) {
	material, err := p.store.Load(ctx, alias)
	if err == nil {
		return material, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, unavailable(err)
	}

	fresh, err := common.RandomBytes(KeySize)
	if err != nil {
		return nil, unavailable(err)
	}

	created, err := p.store.Create(ctx, alias, fresh)
	if err != nil {
		common.WipeByteArray(fresh)
		return nil, unavailable(err)
	}
	if created {
		p.log.Info(ctx, "created key", "alias", alias)
		return fresh, nil
	}

	// Lost the race to another writer; use theirs.
	common.WipeByteArray(fresh)
	material, err = p.store.Load(ctx, alias)
	if err != nil {
		return nil, unavailable(err)
	}
	return material, nil
}

// Close releases every cached key.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for alias, k := range p.keys {
		if err := k.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.keys, alias)
	}
	return errors.Join(errs...)
}

func unavailable(err error) error {
	if errors.Is(err, ErrKeyStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrKeyStoreUnavailable, err)
}
