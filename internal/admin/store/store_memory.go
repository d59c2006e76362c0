package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trialgate/internal/admin/models"
	"trialgate/pkg/platform/sentinel"
)

// InMemory keeps access hashes in memory for tests and database-less runs.
type InMemory struct {
	mu     sync.RWMutex
	hashes map[string]*models.AccessHash
}

func NewInMemory() *InMemory {
	return &InMemory{hashes: make(map[string]*models.AccessHash)}
}

func (s *InMemory) Create(_ context.Context, a *models.AccessHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[a.Hash]; ok {
		return fmt.Errorf("access hash must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *a
	s.hashes[a.Hash] = &cp
	return nil
}

func (s *InMemory) Update(_ context.Context, a *models.AccessHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[a.Hash]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *a
	s.hashes[a.Hash] = &cp
	return nil
}

func (s *InMemory) FindByHash(_ context.Context, hash string) (*models.AccessHash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.hashes[hash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// List returns every hash, newest first.
func (s *InMemory) List(_ context.Context) ([]*models.AccessHash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AccessHash, 0, len(s.hashes))
	for _, a := range s.hashes {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Hash < out[j].Hash
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hashes), nil
}

// LockBootstrap is a no-op: tx.InMemory already runs one transaction at a time.
func (s *InMemory) LockBootstrap(context.Context) error {
	return nil
}
