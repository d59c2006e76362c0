package models

import (
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Algorithm is the only signature scheme issuers use.
const Algorithm = "Ed25519"

// CredentialTypes lists the claim kinds an issuer can attest to.
var CredentialTypes = []string{"Name", "AgeRange18to45", "Gender", "BloodGroup", "Genotype", "Condition"}

// Issuer is a clinic able to sign credentials.
// Keys are fixed at registration; only Active changes afterwards.
type Issuer struct {
	ID         id.IssuerID
	Name       string
	LoginID    string
	DID        string
	PublicKey  string
	PrivateKey string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewIssuer builds an active issuer from freshly generated key material.
func NewIssuer(issuerID id.IssuerID, name, did, loginID string, keys KeyPair, now time.Time) (*Issuer, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer name cannot be empty")
	}
	if did == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer DID cannot be empty")
	}
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	return &Issuer{
		ID:         issuerID,
		Name:       name,
		LoginID:    loginID,
		DID:        did,
		PublicKey:  keys.PublicKey,
		PrivateKey: keys.PrivateKey,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Deactivate hides the issuer from resolution. Existing credentials stay valid.
func (i *Issuer) Deactivate(now time.Time) error {
	if !i.Active {
		return dErrors.New(dErrors.CodeConflict, "Issuer is already inactive")
	}
	i.Active = false
	i.UpdatedAt = now
	return nil
}

// Metadata is the public face of an issuer used by verifiers.
type Metadata struct {
	IssuerName      string   `json:"issuerName"`
	IssuerDID       string   `json:"issuerDID"`
	PublicKey       string   `json:"publicKey"`
	Algorithm       string   `json:"algorithm"`
	CredentialTypes []string `json:"credentialTypes"`
}

func (i *Issuer) Metadata() Metadata {
	return Metadata{
		IssuerName:      i.Name,
		IssuerDID:       i.DID,
		PublicKey:       i.PublicKey,
		Algorithm:       Algorithm,
		CredentialTypes: append([]string(nil), CredentialTypes...),
	}
}

// NameEntry is the minimal listing shown to patients picking a clinic.
type NameEntry struct {
	ID   id.IssuerID
	Name string
}
