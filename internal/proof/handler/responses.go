package handler

import (
	"time"

	credmodels "trialgate/internal/credential/models"
	"trialgate/internal/eligibility"
	"trialgate/internal/proof/models"
)

type CheckCredentialResponse struct {
	IsValid   bool       `json:"isValid"`
	Reason    string     `json:"reason,omitempty"`
	Message   string     `json:"message,omitempty"`
	IssuerDID string     `json:"issuerDID,omitempty"`
	Expiry    *time.Time `json:"expiry,omitempty"`
}

type GenerateProofResponse struct {
	CredentialHash string `json:"credentialHash"`
	IssuerDID      string `json:"issuerDID"`
	ProofHash      string `json:"proofHash"`
	Nullifier      string `json:"nullifier"`
	Signature      string `json:"signature"`
}

type SubmitProofResponse struct {
	Status         models.Status       `json:"status"`
	Message        string              `json:"message"`
	TxHash         string              `json:"txHash"`
	Timestamp      string              `json:"timestamp"`
	ProofID        string              `json:"proofId"`
	EligibleTrials []eligibility.Trial `json:"eligibleTrials"`
	MatchedTrial   eligibility.Trial   `json:"matchedTrial"`
}

type VerifyProofResponse struct {
	IsValid bool   `json:"isValid"`
	TxHash  string `json:"txHash,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type ProofStatusResponse struct {
	ProofHash      string        `json:"proofHash"`
	CredentialHash string        `json:"credentialHash"`
	Status         models.Status `json:"status"`
	TxHash         *string       `json:"txHash"`
	VerifiedAt     *time.Time    `json:"verifiedAt"`
	IssuerName     *string       `json:"issuerName,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

type ProofHistoryResponse struct {
	CredentialStatus credmodels.Status     `json:"credentialStatus"`
	IssuerName       *string               `json:"issuerName"`
	Proofs           []ProofStatusResponse `json:"proofs"`
}

func toStatusResponse(p *models.Proof) ProofStatusResponse {
	var txHash *string
	if p.TxHash != "" {
		h := p.TxHash
		txHash = &h
	}
	return ProofStatusResponse{
		ProofHash:      p.ProofHash,
		CredentialHash: p.CredentialHash,
		Status:         p.Status,
		TxHash:         txHash,
		VerifiedAt:     p.VerifiedAt,
		CreatedAt:      p.CreatedAt,
	}
}
