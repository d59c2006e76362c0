package handler

import (
	"strings"

	"trialgate/pkg/validation"
)

type RegisterIssuerRequest struct {
	Name string `json:"name" validate:"required,notblank,max=255"`
	DID  string `json:"did,omitempty" validate:"omitempty,max=255"`
}

func (r *RegisterIssuerRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.DID = strings.TrimSpace(r.DID)
}

func (r *RegisterIssuerRequest) Validate() error {
	return validation.Validate(r)
}

type VerifyLoginRequest struct {
	IssuerName string `json:"issuerName" validate:"required,notblank"`
	LoginID    string `json:"loginId" validate:"required,notblank"`
}

func (r *VerifyLoginRequest) Normalize() {
	r.IssuerName = strings.TrimSpace(r.IssuerName)
	r.LoginID = strings.TrimSpace(r.LoginID)
}

func (r *VerifyLoginRequest) Validate() error {
	return validation.Validate(r)
}
