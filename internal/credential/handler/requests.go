package handler

import (
	"strings"

	"trialgate/internal/credential/models"
	"trialgate/pkg/validation"
)

// IssueCredentialRequest is the clinic issuance form. Claim presence and the
// allowed value sets are enforced by the service so messages stay uniform.
type IssueCredentialRequest struct {
	Name          string   `json:"name"`
	DOB           string   `json:"dob" validate:"required,date"`
	Gender        string   `json:"gender"`
	BloodGroup    string   `json:"bloodGroup"`
	Genotype      string   `json:"genotype"`
	Conditions    []string `json:"conditions"`
	PatientNumber string   `json:"patientNumber"`
	IssuerID      string   `json:"issuerId,omitempty" validate:"omitempty,uuid"`
	IssuerName    string   `json:"issuerName,omitempty"`
	IssuerLoginID string   `json:"issuerLoginId,omitempty"`
}

func (r *IssueCredentialRequest) Normalize() {
	r.DOB = strings.TrimSpace(r.DOB)
	r.IssuerID = strings.TrimSpace(r.IssuerID)
	r.IssuerName = strings.TrimSpace(r.IssuerName)
	r.IssuerLoginID = strings.TrimSpace(r.IssuerLoginID)
	r.PatientNumber = strings.TrimSpace(r.PatientNumber)
}

func (r *IssueCredentialRequest) Validate() error {
	return validation.Validate(r)
}

type RetrieveCredentialsRequest struct {
	IssuerName    string `json:"issuerName" validate:"required,notblank"`
	PatientNumber string `json:"patientNumber" validate:"required,notblank"`
}

func (r *RetrieveCredentialsRequest) Normalize() {
	r.IssuerName = strings.TrimSpace(r.IssuerName)
	r.PatientNumber = strings.TrimSpace(r.PatientNumber)
}

func (r *RetrieveCredentialsRequest) Validate() error {
	return validation.Validate(r)
}

type RevokeCredentialRequest struct {
	CredentialID string `json:"credentialId" validate:"required,uuid"`
}

func (r *RevokeCredentialRequest) Normalize() {
	r.CredentialID = strings.TrimSpace(r.CredentialID)
}

func (r *RevokeCredentialRequest) Validate() error {
	return validation.Validate(r)
}

type VerifySignatureRequest struct {
	Credential models.Document `json:"credential"`
	Signature  string          `json:"signature" validate:"required,hexadecimal"`
	PublicKey  string          `json:"publicKey" validate:"required,hexadecimal"`
}

func (r *VerifySignatureRequest) Normalize() {
	r.Signature = strings.TrimSpace(r.Signature)
	r.PublicKey = strings.TrimSpace(r.PublicKey)
}

func (r *VerifySignatureRequest) Validate() error {
	return validation.Validate(r)
}
