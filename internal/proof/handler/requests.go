package handler

import (
	"strings"

	credmodels "trialgate/internal/credential/models"
	"trialgate/internal/proof/models"
	"trialgate/pkg/validation"
)

type CheckCredentialRequest struct {
	CredentialHash string `json:"credentialHash" validate:"required,notblank"`
}

func (r *CheckCredentialRequest) Normalize() {
	r.CredentialHash = strings.TrimSpace(r.CredentialHash)
}

func (r *CheckCredentialRequest) Validate() error {
	return validation.Validate(r)
}

type GenerateProofRequest struct {
	CredentialHash string               `json:"credentialHash" validate:"required,notblank"`
	IssuerDID      string               `json:"issuerDID" validate:"required,notblank"`
	Credential     *credmodels.Document `json:"credential,omitempty"`
}

func (r *GenerateProofRequest) Normalize() {
	r.CredentialHash = strings.TrimSpace(r.CredentialHash)
	r.IssuerDID = strings.TrimSpace(r.IssuerDID)
}

func (r *GenerateProofRequest) Validate() error {
	return validation.Validate(r)
}

type SubmitProofRequest struct {
	CredentialHash string `json:"credentialHash" validate:"required,notblank"`
	ProofHash      string `json:"proofHash" validate:"required,notblank"`
	Nullifier      string `json:"nullifier" validate:"required,notblank"`
	IssuerDID      string `json:"issuerDID" validate:"required,notblank"`
	Signature      string `json:"signature" validate:"required,notblank"`
}

func (r *SubmitProofRequest) Normalize() {
	r.CredentialHash = strings.TrimSpace(r.CredentialHash)
	r.ProofHash = strings.TrimSpace(r.ProofHash)
	r.Nullifier = strings.TrimSpace(r.Nullifier)
	r.IssuerDID = strings.TrimSpace(r.IssuerDID)
	r.Signature = strings.TrimSpace(r.Signature)
}

func (r *SubmitProofRequest) Validate() error {
	return validation.Validate(r)
}

func (r *SubmitProofRequest) submission() models.Submission {
	return models.Submission{
		CredentialHash: r.CredentialHash,
		ProofHash:      r.ProofHash,
		Nullifier:      r.Nullifier,
		IssuerDID:      r.IssuerDID,
		Signature:      r.Signature,
	}
}

// VerifyProofRequest runs only the verifier, so every field is optional and
// the verifier reports what is missing.
type VerifyProofRequest struct {
	ProofHash string `json:"proofHash"`
	Nullifier string `json:"nullifier"`
	IssuerDID string `json:"issuerDID"`
	Signature string `json:"signature"`
}

func (r *VerifyProofRequest) Normalize() {
	r.ProofHash = strings.TrimSpace(r.ProofHash)
	r.Nullifier = strings.TrimSpace(r.Nullifier)
	r.IssuerDID = strings.TrimSpace(r.IssuerDID)
	r.Signature = strings.TrimSpace(r.Signature)
}

func (r *VerifyProofRequest) Validate() error {
	return nil
}
