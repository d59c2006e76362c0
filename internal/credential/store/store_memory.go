package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trialgate/internal/credential/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// InMemory keeps credential records in memory for tests and database-less runs.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.CredentialID]*models.Record
	hashIdx map[string]id.CredentialID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[id.CredentialID]*models.Record),
		hashIdx: make(map[string]id.CredentialID),
	}
}

// Create inserts the record. The credential hash is unique.
func (s *InMemory) Create(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashIdx[rec.Hash]; ok {
		return fmt.Errorf("credential hash must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.records[rec.ID] = clone(rec)
	s.hashIdx[rec.Hash] = rec.ID
	return nil
}

func (s *InMemory) Update(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.records[rec.ID] = clone(rec)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, credentialID id.CredentialID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[credentialID]; ok {
		return clone(rec), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByHash(_ context.Context, hash string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if credentialID, ok := s.hashIdx[hash]; ok {
		return clone(s.records[credentialID]), nil
	}
	return nil, sentinel.ErrNotFound
}

// ListByIssuerAndPatient returns the patient's credentials from one issuer, newest first.
func (s *InMemory) ListByIssuerAndPatient(_ context.Context, issuerID id.IssuerID, patientNumber string) ([]*models.Record, error) {
	return s.collect(func(rec *models.Record) bool {
		return rec.IssuerID == issuerID && rec.PatientNumber == patientNumber
	}), nil
}

// List returns every credential, newest first. A nil issuer id matches all issuers.
func (s *InMemory) List(_ context.Context, issuerID *id.IssuerID) ([]*models.Record, error) {
	return s.collect(func(rec *models.Record) bool {
		return issuerID == nil || rec.IssuerID == *issuerID
	}), nil
}

func (s *InMemory) collect(keep func(*models.Record) bool) []*models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, rec := range s.records {
		if keep(rec) {
			out = append(out, clone(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func clone(rec *models.Record) *models.Record {
	cp := *rec
	if rec.Document != nil {
		doc := *rec.Document
		doc.Claims.Conditions = append([]string(nil), rec.Document.Claims.Conditions...)
		cp.Document = &doc
	}
	return &cp
}
