package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trialgate/internal/trial/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// InMemory keeps trials in memory for tests and database-less runs.
type InMemory struct {
	mu      sync.RWMutex
	trials  map[id.TrialID]*models.Trial
	codeIdx map[string]id.TrialID
}

func NewInMemory() *InMemory {
	return &InMemory{
		trials:  make(map[id.TrialID]*models.Trial),
		codeIdx: make(map[string]id.TrialID),
	}
}

// Create inserts the trial. Code names are unique.
func (s *InMemory) Create(_ context.Context, t *models.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codeIdx[t.CodeName]; ok {
		return fmt.Errorf("trial code name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.trials[t.ID] = clone(t)
	s.codeIdx[t.CodeName] = t.ID
	return nil
}

func (s *InMemory) Update(_ context.Context, t *models.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trials[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.trials[t.ID] = clone(t)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, trialID id.TrialID) (*models.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.trials[trialID]; ok {
		return clone(t), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByCodeName(_ context.Context, codeName string) (*models.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if trialID, ok := s.codeIdx[codeName]; ok {
		return clone(s.trials[trialID]), nil
	}
	return nil, sentinel.ErrNotFound
}

// ListActive returns active trials in creation order.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Trial
	for _, t := range s.trials {
		if t.Active {
			out = append(out, clone(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CodeName < out[j].CodeName
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func clone(t *models.Trial) *models.Trial {
	cp := *t
	r := t.Requirements
	if r.MinAge != nil {
		v := *r.MinAge
		cp.Requirements.MinAge = &v
	}
	if r.MaxAge != nil {
		v := *r.MaxAge
		cp.Requirements.MaxAge = &v
	}
	cp.Requirements.Genders = append([]string(nil), r.Genders...)
	cp.Requirements.BloodGroups = append([]string(nil), r.BloodGroups...)
	cp.Requirements.Genotypes = append([]string(nil), r.Genotypes...)
	cp.Requirements.Conditions = append([]string(nil), r.Conditions...)
	return &cp
}
