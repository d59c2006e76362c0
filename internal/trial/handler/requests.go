package handler

import (
	"strings"

	"trialgate/internal/eligibility"
	"trialgate/internal/trial/service"
	platformstrings "trialgate/pkg/platform/strings"
	"trialgate/pkg/validation"
)

type CreateTrialRequest struct {
	CodeName     string                   `json:"codeName" validate:"required,notblank,max=100"`
	DisplayName  string                   `json:"displayName" validate:"required,notblank,max=255"`
	Requirements eligibility.Requirements `json:"requirements"`
}

func (r *CreateTrialRequest) Normalize() {
	r.CodeName = strings.TrimSpace(r.CodeName)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Requirements.Genders = platformstrings.DedupeAndTrim(r.Requirements.Genders)
	r.Requirements.BloodGroups = platformstrings.DedupeAndTrim(r.Requirements.BloodGroups)
	r.Requirements.Genotypes = platformstrings.DedupeAndTrim(r.Requirements.Genotypes)
	r.Requirements.Conditions = platformstrings.DedupeAndTrim(r.Requirements.Conditions)
}

func (r *CreateTrialRequest) Validate() error {
	return validation.Validate(r)
}

func (r *CreateTrialRequest) command() service.CreateCommand {
	return service.CreateCommand{
		CodeName:     r.CodeName,
		DisplayName:  r.DisplayName,
		Requirements: r.Requirements,
	}
}

type CreateTrialsBulkRequest struct {
	Trials []CreateTrialRequest `json:"trials" validate:"required,min=1,dive"`
}

func (r *CreateTrialsBulkRequest) Normalize() {
	for i := range r.Trials {
		r.Trials[i].Normalize()
	}
}

func (r *CreateTrialsBulkRequest) Validate() error {
	return validation.Validate(r)
}
