package handler

import (
	"strings"

	"trialgate/pkg/validation"
)

// GenerateHashRequest may carry the caller's own accessHash; the admin gate reads it.
type GenerateHashRequest struct {
	Description string `json:"description" validate:"max=255"`
	AccessHash  string `json:"accessHash,omitempty"`
}

func (r *GenerateHashRequest) Normalize() {
	r.Description = strings.TrimSpace(r.Description)
}

func (r *GenerateHashRequest) Validate() error {
	return validation.Validate(r)
}

type VerifyHashRequest struct {
	AccessHash string `json:"accessHash"`
}

func (r *VerifyHashRequest) Normalize() {
	r.AccessHash = strings.TrimSpace(r.AccessHash)
}

func (r *VerifyHashRequest) Validate() error {
	return nil
}
