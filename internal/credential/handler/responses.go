package handler

import (
	"time"

	"trialgate/internal/credential/models"
)

type IssueCredentialResponse struct {
	Credential      models.Document `json:"credential"`
	Signature       string          `json:"signature"`
	CredentialHash  string          `json:"credentialHash"`
	IssuerPublicKey string          `json:"issuerPublicKey"`
	IssuerDID       string          `json:"issuerDID"`
	CredentialID    string          `json:"credentialId"`
	IssuerID        string          `json:"issuerId"`
	IssuerName      string          `json:"issuerName"`
	PatientNumber   string          `json:"patientNumber"`
}

func toIssueResponse(issued *models.Issued) IssueCredentialResponse {
	return IssueCredentialResponse{
		Credential:      issued.Document,
		Signature:       issued.Signature,
		CredentialHash:  issued.Hash,
		IssuerPublicKey: issued.IssuerPublicKey,
		IssuerDID:       issued.IssuerDID,
		CredentialID:    issued.CredentialID.String(),
		IssuerID:        issued.IssuerID.String(),
		IssuerName:      issued.IssuerName,
		PatientNumber:   issued.PatientNumber,
	}
}

type CredentialResponse struct {
	ID             string        `json:"id"`
	CredentialHash string        `json:"credentialHash"`
	IssuedAt       time.Time     `json:"issuedAt"`
	Expiry         time.Time     `json:"expiry"`
	IssuerDID      string        `json:"issuerDid"`
	Status         models.Status `json:"status"`
}

// CredentialSummary is one row of the admin credential listing.
type CredentialSummary struct {
	CredentialResponse
	IssuerID      string    `json:"issuerId"`
	IssuerName    *string   `json:"issuerName"`
	PatientNumber string    `json:"patientNumber"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RetrievedCredential is returned to a patient looking up their own credentials.
type RetrievedCredential struct {
	CredentialResponse
	Credential *models.Document `json:"credential"`
	IssuerID   string           `json:"issuerId"`
	IssuerName string           `json:"issuerName"`
	CreatedAt  time.Time        `json:"createdAt"`
}

func toCredentialResponse(rec *models.Record, now time.Time) CredentialResponse {
	return CredentialResponse{
		ID:             rec.ID.String(),
		CredentialHash: rec.Hash,
		IssuedAt:       rec.IssuedAt,
		Expiry:         rec.Expiry,
		IssuerDID:      rec.IssuerDID,
		Status:         rec.EffectiveStatus(now),
	}
}

type RevokeCredentialResponse struct {
	Message      string        `json:"message"`
	CredentialID string        `json:"credentialId"`
	Status       models.Status `json:"status"`
}

type VerifySignatureResponse struct {
	Valid bool `json:"valid"`
}
