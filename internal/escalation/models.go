package escalation

import "time"

// Escalation is the append-only audit record of handing one call to a
// counselor. Rows are never updated or deleted; UNIQUE(call_id,
// counselor_id) suppresses duplicates from webhook replays.
type Escalation struct {
	ID          string `json:"id" db:"id"`
	CallID      string `json:"call_id" db:"call_id"`
	CounselorID string `json:"counselor_id" db:"counselor_id"`

	// Notes carry the escalation reason plus a conversation summary.
	Notes string `json:"notes" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Assignment is the outcome of routing a call to a counselor.
type Assignment struct {
	Escalation Escalation `json:"escalation"`

	CounselorID    string `json:"counselor_id"`
	CounselorPhone string `json:"counselor_phone"`
}
