package handler

import (
	"time"

	"trialgate/internal/admin/models"
	"trialgate/pkg/platform/audit"
)

type GenerateHashResponse struct {
	AccessHash  string    `json:"accessHash"`
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Message     string    `json:"message"`
}

type VerifyHashResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type AccessHashResponse struct {
	ID          string    `json:"id"`
	Hash        string    `json:"hash"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

type DeactivateHashResponse struct {
	Message string `json:"message"`
	Hash    string `json:"hash"`
}

type AuditEventsResponse struct {
	Events []audit.Event `json:"events"`
	Total  int           `json:"total"`
}

func toAccessHashResponse(a *models.AccessHash) AccessHashResponse {
	return AccessHashResponse{
		ID:          a.ID.String(),
		Hash:        a.Hash,
		Description: a.Description,
		IsActive:    a.Active,
		CreatedAt:   a.CreatedAt,
	}
}
