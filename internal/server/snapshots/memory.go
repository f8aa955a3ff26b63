package snapshots

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository keeps snapshots in process memory. It is used when no
// database is configured.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]*Snapshot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*Snapshot)}
}

func (r *MemoryRepository) Save(_ context.Context, s *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[s.ID]; ok {
		return fmt.Errorf("snapshots: duplicate id %s", s.ID)
	}
	r.rows[s.ID] = clone(s)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (r *MemoryRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.rows)), nil
}
