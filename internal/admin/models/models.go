package models

import (
	"regexp"
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// HashLength is the length of an access hash in hex characters.
const HashLength = 16

var hashPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

// AccessHash is a capability token for privileged operations.
type AccessHash struct {
	ID          id.AccessHashID
	Hash        string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewAccessHash rejects anything but 16 lowercase hex characters.
func NewAccessHash(hash, description string, now time.Time) (*AccessHash, error) {
	if !hashPattern.MatchString(hash) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "access hash must be 16 lowercase hex characters")
	}
	return &AccessHash{
		ID:          id.NewAccessHashID(),
		Hash:        hash,
		Description: description,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (a *AccessHash) Deactivate(now time.Time) error {
	if !a.Active {
		return dErrors.New(dErrors.CodeConflict, "Access hash is already inactive")
	}
	a.Active = false
	a.UpdatedAt = now
	return nil
}

// Actor labels audit events without exposing the hash itself.
func (a *AccessHash) Actor() string {
	return "admin:" + a.ID.String()
}
