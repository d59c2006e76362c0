package models

import (
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Status is the outcome recorded for a proof submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected, StatusExpired:
		return true
	}
	return false
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "unknown proof status: "+v)
	}
	return s, nil
}

// Proof is one submission attempt. Rows are written once and never updated.
type Proof struct {
	ID               id.ProofID
	ProofHash        string
	Nullifier        string
	IssuerDID        string
	CredentialHash   string
	TrialID          *id.TrialID
	EligibleTrialIDs []id.TrialID
	Status           Status
	TxHash           string
	VerifiedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Submission is what a holder sends to have a proof checked.
type Submission struct {
	CredentialHash string
	ProofHash      string
	Nullifier      string
	IssuerDID      string
	Signature      string
}

// NewTerminal records a failed attempt so it counts towards the cooldown.
func NewTerminal(sub Submission, status Status, now time.Time) *Proof {
	return &Proof{
		ID:             id.NewProofID(),
		ProofHash:      sub.ProofHash,
		Nullifier:      sub.Nullifier,
		IssuerDID:      sub.IssuerDID,
		CredentialHash: sub.CredentialHash,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewVerified records an accepted proof against its primary trial.
func NewVerified(sub Submission, txHash string, primary id.TrialID, eligible []id.TrialID, now time.Time) *Proof {
	p := NewTerminal(sub, StatusVerified, now)
	p.TxHash = txHash
	p.TrialID = &primary
	p.EligibleTrialIDs = eligible
	verifiedAt := now
	p.VerifiedAt = &verifiedAt
	return p
}
