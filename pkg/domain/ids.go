// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "trialgate/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing an IssuerID where a TrialID is expected.
type (
	IssuerID     uuid.UUID
	CredentialID uuid.UUID
	TrialID      uuid.UUID
	ProofID      uuid.UUID
	AccessHashID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseIssuerID(s string) (IssuerID, error) {
	id, err := parseUUID(s, "issuer ID")
	return IssuerID(id), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	id, err := parseUUID(s, "credential ID")
	return CredentialID(id), err
}

func ParseTrialID(s string) (TrialID, error) {
	id, err := parseUUID(s, "trial ID")
	return TrialID(id), err
}

func ParseProofID(s string) (ProofID, error) {
	id, err := parseUUID(s, "proof ID")
	return ProofID(id), err
}

// New constructors.

func NewIssuerID() IssuerID         { return IssuerID(uuid.New()) }
func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }
func NewTrialID() TrialID           { return TrialID(uuid.New()) }
func NewProofID() ProofID           { return ProofID(uuid.New()) }
func NewAccessHashID() AccessHashID { return AccessHashID(uuid.New()) }

// String methods - for logging and JSON responses.

func (id IssuerID) String() string     { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id TrialID) String() string      { return uuid.UUID(id).String() }
func (id ProofID) String() string      { return uuid.UUID(id).String() }
func (id AccessHashID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id IssuerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TrialID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ProofID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AccessHashID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic.
// Nil UUIDs parse successfully so store lookups can answer "not found" consistently.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+label+" format")
	}
	return id, nil
}
