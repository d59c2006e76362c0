package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trialgate/internal/issuer/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// InMemory stores issuers in memory for tests and database-less runs.
type InMemory struct {
	mu       sync.RWMutex
	issuers  map[id.IssuerID]*models.Issuer
	nameIdx  map[string]id.IssuerID
	didIdx   map[string]id.IssuerID
	loginIdx map[string]id.IssuerID
}

func NewInMemory() *InMemory {
	return &InMemory{
		issuers:  make(map[id.IssuerID]*models.Issuer),
		nameIdx:  make(map[string]id.IssuerID),
		didIdx:   make(map[string]id.IssuerID),
		loginIdx: make(map[string]id.IssuerID),
	}
}

// Create inserts the issuer, enforcing unique name (case-insensitive), DID and login id.
func (s *InMemory) Create(_ context.Context, iss *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(iss.Name)
	if _, ok := s.nameIdx[lower]; ok {
		return fmt.Errorf("issuer name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	if _, ok := s.didIdx[iss.DID]; ok {
		return fmt.Errorf("issuer did must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	if iss.LoginID != "" {
		if _, ok := s.loginIdx[iss.LoginID]; ok {
			return fmt.Errorf("create issuer: %w", models.ErrLoginIDTaken)
		}
		s.loginIdx[iss.LoginID] = iss.ID
	}
	cp := *iss
	s.issuers[iss.ID] = &cp
	s.nameIdx[lower] = iss.ID
	s.didIdx[iss.DID] = iss.ID
	return nil
}

func (s *InMemory) Update(_ context.Context, iss *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issuers[iss.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *iss
	s.issuers[iss.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if iss, ok := s.issuers[issuerID]; ok {
		cp := *iss
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByName matches the name case-insensitively regardless of active state.
func (s *InMemory) FindByName(_ context.Context, name string) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.nameIdx, strings.ToLower(name))
}

func (s *InMemory) FindByDID(_ context.Context, did string) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.didIdx, did)
}

func (s *InMemory) LoginIDExists(_ context.Context, loginID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.loginIdx[loginID]
	return ok, nil
}

// ListActive returns active issuers, newest first.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Issuer, 0, len(s.issuers))
	for _, iss := range s.issuers {
		if iss.Active {
			cp := *iss
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) lookup(idx map[string]id.IssuerID, key string) (*models.Issuer, error) {
	issuerID, ok := idx[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.issuers[issuerID]
	return &cp, nil
}
