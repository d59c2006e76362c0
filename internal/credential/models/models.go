package models

import (
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Status is the lifecycle state of an issued credential.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusRevoked, StatusExpired:
		return true
	}
	return false
}

// ParseStatus converts a stored value into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "unknown credential status: "+v)
	}
	return s, nil
}

// Record is a persisted credential. Document is nil only for rows written
// before documents were embedded.
type Record struct {
	ID            id.CredentialID
	Hash          string
	Document      *Document
	IssuedAt      time.Time
	Expiry        time.Time
	IssuerDID     string
	IssuerID      id.IssuerID
	PatientNumber string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRecord builds an active record for a freshly signed document.
func NewRecord(credentialID id.CredentialID, hash string, doc Document, issuedAt, expiry time.Time, issuerID id.IssuerID, patientNumber string) (*Record, error) {
	if hash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential hash cannot be empty")
	}
	if !expiry.After(issuedAt) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential expiry must be after issuance")
	}
	return &Record{
		ID:            credentialID,
		Hash:          hash,
		Document:      &doc,
		IssuedAt:      issuedAt,
		Expiry:        expiry,
		IssuerDID:     doc.Issuer,
		IssuerID:      issuerID,
		PatientNumber: patientNumber,
		Status:        StatusActive,
		CreatedAt:     issuedAt,
		UpdatedAt:     issuedAt,
	}, nil
}

// IsExpired reports whether the record is past its expiry or stored as expired.
func (r *Record) IsExpired(now time.Time) bool {
	return r.Status == StatusExpired || r.Expiry.Before(now)
}

// EffectiveStatus derives expired for active records whose expiry has passed.
func (r *Record) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusActive && r.Expiry.Before(now) {
		return StatusExpired
	}
	return r.Status
}

// Revoke is one-way.
func (r *Record) Revoke(now time.Time) error {
	if r.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeConflict, "Credential is already revoked")
	}
	r.Status = StatusRevoked
	r.UpdatedAt = now
	return nil
}
