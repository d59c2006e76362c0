package audit

import (
	"context"
	"time"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	Subject   string        `json:"subject"`
	Actor     string        `json:"actor,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// EventCategory groups events by retention and review needs.
type EventCategory string

const (
	// CategoryCompliance covers patient-affecting records kept for trial audits.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers admin capability changes and denied access.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers registry housekeeping.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	EventIssuerRegistered     AuditEvent = "issuer_registered"
	EventIssuerDeactivated    AuditEvent = "issuer_deactivated"
	EventCredentialIssued     AuditEvent = "credential_issued"
	EventCredentialRevoked    AuditEvent = "credential_revoked"
	EventProofSubmitted       AuditEvent = "proof_submitted"
	EventTrialCreated         AuditEvent = "trial_created"
	EventTrialDeactivated     AuditEvent = "trial_deactivated"
	EventAdminHashCreated     AuditEvent = "admin_hash_created"
	EventAdminHashDeactivated AuditEvent = "admin_hash_deactivated"
	EventAdminAccessDenied    AuditEvent = "admin_access_denied"
)

// Category maps an event to its category. Unknown events fall back to operations.
func (e AuditEvent) Category() EventCategory {
	switch e {
	case EventCredentialIssued, EventCredentialRevoked, EventProofSubmitted:
		return CategoryCompliance
	case EventAdminHashCreated, EventAdminHashDeactivated, EventAdminAccessDenied:
		return CategorySecurity
	default:
		return CategoryOperations
	}
}
