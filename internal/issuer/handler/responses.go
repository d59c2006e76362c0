package handler

import (
	"time"

	"trialgate/internal/issuer/models"
)

type IssuerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DID       string    `json:"did"`
	PublicKey string    `json:"publicKey"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterIssuerResponse is the only response that reveals the clinic login ID.
type RegisterIssuerResponse struct {
	IssuerResponse
	LoginID string `json:"loginId"`
}

type NameResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type VerifyLoginResponse struct {
	Valid      bool   `json:"valid"`
	IssuerID   string `json:"issuerId"`
	IssuerName string `json:"issuerName"`
}

type DeactivateResponse struct {
	Message  string `json:"message"`
	IssuerID string `json:"issuerId"`
	IsActive bool   `json:"isActive"`
}

func toIssuerResponse(issuer *models.Issuer) IssuerResponse {
	return IssuerResponse{
		ID:        issuer.ID.String(),
		Name:      issuer.Name,
		DID:       issuer.DID,
		PublicKey: issuer.PublicKey,
		IsActive:  issuer.Active,
		CreatedAt: issuer.CreatedAt,
	}
}
