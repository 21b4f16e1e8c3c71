package store

import (
	"context"
	"sync"

	"github.com/agenthands/sleuth/internal/core/model"
)

// MemStore is the in-process CaseStore used by tests and single-node runs.
type MemStore struct {
	mu    sync.RWMutex
	cases map[string]*model.Case
}

func NewMemStore() *MemStore {
	return &MemStore{cases: make(map[string]*model.Case)}
}

func (s *MemStore) Get(ctx context.Context, id string) (*model.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (s *MemStore) Put(ctx context.Context, c *model.Case, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.cases[c.ID]
	if expectedVersion == 0 {
		if exists {
			return ErrVersionMismatch
		}
	} else {
		if !exists {
			return ErrNotFound
		}
		if cur.Version != expectedVersion {
			return ErrVersionMismatch
		}
	}

	s.cases[c.ID] = c.Clone()
	return nil
}

func (s *MemStore) Close() error { return nil }
