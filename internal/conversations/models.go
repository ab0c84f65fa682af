package conversations

import "time"

// Conversation is the message transcript attached to one call. A fresh
// conversation is created per call and never reused.
type Conversation struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Message is one transcript line. Messages are immutable once created
// and insertion-ordered (seq is a bigserial).
type Message struct {
	ID             string      `json:"id" db:"id"`
	ConversationID string      `json:"conversation_id" db:"conversation_id"`
	Role           MessageRole `json:"role" db:"role"`
	Content        string      `json:"content" db:"content"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)
