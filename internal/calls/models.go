package calls

import "time"

// Call is one phone session with the system.
//
// Lifecycle: ai_handling -> counselor_assigned -> completed, or straight
// to completed when the provider reports a terminal status.
//
// Invariants:
// - AssignedCounselorID is non-empty iff Status is counselor_assigned.
// - EndedAt is non-nil iff Status is completed.
// - ProviderCallSid is unique when present; lookup by it must be
//   idempotent under duplicate webhook delivery.

type Call struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	// ProviderCallSid is the telephony provider's call identifier.
	// Empty until known (e.g., calls recorded outside the webhook).
	ProviderCallSid string `json:"provider_call_sid,omitempty" db:"provider_call_sid"`

	Status Status `json:"status" db:"status"`

	ConversationID      string `json:"conversation_id" db:"conversation_id"`
	AssignedCounselorID string `json:"assigned_counselor_id,omitempty" db:"assigned_counselor_id"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

type Status string

const (
	StatusAIHandling        Status = "ai_handling"
	StatusCounselorAssigned Status = "counselor_assigned"
	StatusCompleted         Status = "completed"
)
