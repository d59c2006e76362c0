package handler

import (
	"time"

	"trialgate/internal/eligibility"
	"trialgate/internal/trial/models"
)

type TrialResponse struct {
	ID           string                   `json:"id"`
	CodeName     string                   `json:"codeName"`
	DisplayName  string                   `json:"displayName"`
	Requirements eligibility.Requirements `json:"requirements"`
	IsActive     bool                     `json:"isActive"`
	CreatedAt    time.Time                `json:"createdAt"`
	UpdatedAt    time.Time                `json:"updatedAt"`
}

func toTrialResponse(t *models.Trial) TrialResponse {
	return TrialResponse{
		ID:           t.ID.String(),
		CodeName:     t.CodeName,
		DisplayName:  t.DisplayName,
		Requirements: t.Requirements,
		IsActive:     t.Active,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

type TrialNameResponse struct {
	ID          string `json:"id"`
	CodeName    string `json:"codeName"`
	DisplayName string `json:"displayName"`
}

func toNameResponse(t *models.Trial) TrialNameResponse {
	return TrialNameResponse{ID: t.ID.String(), CodeName: t.CodeName, DisplayName: t.DisplayName}
}

type BulkErrorResponse struct {
	CodeName string `json:"codeName"`
	Error    string `json:"error"`
}

type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type CreateTrialsBulkResponse struct {
	Created []TrialNameResponse `json:"created"`
	Errors  []BulkErrorResponse `json:"errors"`
	Summary BulkSummary         `json:"summary"`
}

func toBulkResponse(res models.BulkResult) CreateTrialsBulkResponse {
	out := CreateTrialsBulkResponse{
		Created: make([]TrialNameResponse, 0, len(res.Created)),
		Errors:  make([]BulkErrorResponse, 0, len(res.Errors)),
		Summary: BulkSummary{Total: res.Total, Successful: len(res.Created), Failed: len(res.Errors)},
	}
	for _, t := range res.Created {
		out.Created = append(out.Created, toNameResponse(t))
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, BulkErrorResponse{CodeName: e.CodeName, Error: e.Error})
	}
	return out
}

type DeactivateResponse struct {
	Message  string `json:"message"`
	TrialID  string `json:"trialId"`
	IsActive bool   `json:"isActive"`
}
