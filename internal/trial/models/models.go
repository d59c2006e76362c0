package models

import (
	"strings"
	"time"

	"trialgate/internal/eligibility"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Trial is a clinical study patients can prove eligibility for.
type Trial struct {
	ID           id.TrialID
	CodeName     string
	DisplayName  string
	Requirements eligibility.Requirements
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTrial builds an active trial after checking the requirement bounds.
func NewTrial(trialID id.TrialID, codeName, displayName string, req eligibility.Requirements, now time.Time) (*Trial, error) {
	codeName = strings.TrimSpace(codeName)
	displayName = strings.TrimSpace(displayName)
	if codeName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Trial code name is required")
	}
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Trial display name is required")
	}
	if err := ValidateRequirements(req); err != nil {
		return nil, err
	}
	return &Trial{
		ID:           trialID,
		CodeName:     codeName,
		DisplayName:  displayName,
		Requirements: req,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateRequirements rejects negative ages and inverted age ranges.
func ValidateRequirements(req eligibility.Requirements) error {
	if req.MinAge != nil && *req.MinAge < 0 {
		return dErrors.New(dErrors.CodeValidation, "minAge must be at least 0")
	}
	if req.MaxAge != nil && *req.MaxAge < 0 {
		return dErrors.New(dErrors.CodeValidation, "maxAge must be at least 0")
	}
	if req.MinAge != nil && req.MaxAge != nil && *req.MinAge > *req.MaxAge {
		return dErrors.New(dErrors.CodeValidation, "minAge cannot be greater than maxAge")
	}
	return nil
}

func (t *Trial) Deactivate(now time.Time) error {
	if !t.Active {
		return dErrors.New(dErrors.CodeConflict, "Trial is already inactive")
	}
	t.Active = false
	t.UpdatedAt = now
	return nil
}

// Candidate is the matcher's view of the trial.
func (t *Trial) Candidate() eligibility.Trial {
	return eligibility.Trial{
		ID:           t.ID.String(),
		CodeName:     t.CodeName,
		DisplayName:  t.DisplayName,
		Requirements: t.Requirements,
	}
}

// BulkError records why one entry of a bulk create was skipped.
type BulkError struct {
	CodeName string
	Error    string
}

// BulkResult reports a bulk create. One bad entry never aborts the batch.
type BulkResult struct {
	Created []*Trial
	Errors  []BulkError
	Total   int
}
