package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trialgate/internal/proof/models"
	"trialgate/pkg/platform/sentinel"
)

// InMemory keeps proofs in memory for tests and database-less runs.
type InMemory struct {
	mu           sync.RWMutex
	proofs       []*models.Proof
	hashIdx      map[string]int
	nullifierIdx map[string]int
}

func NewInMemory() *InMemory {
	return &InMemory{
		hashIdx:      make(map[string]int),
		nullifierIdx: make(map[string]int),
	}
}

// Create inserts the proof. Proof hash and nullifier are each unique.
func (s *InMemory) Create(_ context.Context, p *models.Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashIdx[p.ProofHash]; ok {
		return fmt.Errorf("proof hash must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	if _, ok := s.nullifierIdx[p.Nullifier]; ok {
		return fmt.Errorf("nullifier must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.proofs = append(s.proofs, clone(p))
	s.hashIdx[p.ProofHash] = len(s.proofs) - 1
	s.nullifierIdx[p.Nullifier] = len(s.proofs) - 1
	return nil
}

func (s *InMemory) FindByHash(_ context.Context, proofHash string) (*models.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.hashIdx[proofHash]; ok {
		return clone(s.proofs[i]), nil
	}
	return nil, sentinel.ErrNotFound
}

// ExistsByHashOrNullifier reports whether either identifier was already used.
func (s *InMemory) ExistsByHashOrNullifier(_ context.Context, proofHash, nullifier string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, byHash := s.hashIdx[proofHash]
	_, byNullifier := s.nullifierIdx[nullifier]
	return byHash || byNullifier, nil
}

// LatestByCredential returns the most recent proof for the credential.
func (s *InMemory) LatestByCredential(ctx context.Context, credentialHash string) (*models.Proof, error) {
	proofs, err := s.ListByCredential(ctx, credentialHash)
	if err != nil {
		return nil, err
	}
	if len(proofs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return proofs[0], nil
}

// ListByCredential returns the credential's proofs, newest first.
func (s *InMemory) ListByCredential(_ context.Context, credentialHash string) ([]*models.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Proof
	for _, p := range s.proofs {
		if p.CredentialHash == credentialHash {
			out = append(out, clone(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func clone(p *models.Proof) *models.Proof {
	cp := *p
	if p.TrialID != nil {
		t := *p.TrialID
		cp.TrialID = &t
	}
	if p.VerifiedAt != nil {
		v := *p.VerifiedAt
		cp.VerifiedAt = &v
	}
	cp.EligibleTrialIDs = append(cp.EligibleTrialIDs[:0:0], p.EligibleTrialIDs...)
	return &cp
}
