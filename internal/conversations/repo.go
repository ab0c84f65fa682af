package conversations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NOTE: This repository assumes the following tables exist:
//
//   conversations (
//     id uuid PRIMARY KEY,
//     user_id uuid NOT NULL REFERENCES users(id),
//     created_at timestamptz NOT NULL
//   )
//
//   messages (
//     id uuid PRIMARY KEY,
//     seq bigserial,
//     conversation_id uuid NOT NULL REFERENCES conversations(id),
//     role text NOT NULL,
//     content text NOT NULL,
//     created_at timestamptz NOT NULL
//   )
//
// Messages are append-only; ordering is read back via seq, not
// created_at, so same-millisecond appends keep receipt order.

var (
	ErrNotFound        = errors.New("conversation not found")
	ErrInvalidArgument = errors.New("conversations: invalid argument")
)

// Locker serializes message appends per conversation across instances.
// Implemented by utils.RedisMutex in production; tests use NopLocker.
type Locker interface {
	Acquire(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key, token string) error
}

// NopLocker performs no locking. Only for single-writer tests.
type NopLocker struct{}

func (NopLocker) Acquire(ctx context.Context, key string) (string, error) { return "nop", nil }
func (NopLocker) Release(ctx context.Context, key, token string) error    { return nil }

type Repo struct {
	db     *sql.DB
	locker Locker
	clock  func() time.Time
}

func NewRepo(db *sql.DB, locker Locker) *Repo {
	if locker == nil {
		locker = NopLocker{}
	}
	return &Repo{db: db, locker: locker, clock: time.Now}
}

// CreateTx inserts a conversation inside a caller-owned transaction,
// so call creation can mint user+conversation+call as one unit.
func CreateTx(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (Conversation, error) {
	if userID == "" {
		return Conversation{}, ErrInvalidArgument
	}
	conv := Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now.UTC(),
	}
	const q = `INSERT INTO conversations (id, user_id, created_at) VALUES ($1,$2,$3)`
	if _, err := tx.ExecContext(ctx, q, conv.ID, conv.UserID, conv.CreatedAt); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func lockKey(conversationID string) string {
	return "conv:" + conversationID + ":append"
}

// Append records one transcript line. The per-conversation lock keeps
// appends in receipt order even under concurrent webhook delivery for
// the same call.
func (r *Repo) Append(ctx context.Context, conversationID string, role MessageRole, content string) (Message, error) {
	if conversationID == "" || content == "" {
		return Message{}, ErrInvalidArgument
	}
	if role != MessageRoleUser && role != MessageRoleAssistant {
		return Message{}, ErrInvalidArgument
	}

	token, err := r.locker.Acquire(ctx, lockKey(conversationID))
	if err != nil {
		return Message{}, fmt.Errorf("acquire conversation lock: %w", err)
	}
	defer func() { _ = r.locker.Release(ctx, lockKey(conversationID), token) }()

	m := Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      r.clock().UTC(),
	}
	const q = `
INSERT INTO messages (id, conversation_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	if _, err := r.db.ExecContext(ctx, q, m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt); err != nil {
		return Message{}, err
	}
	return m, nil
}

// List returns the full transcript in insertion order.
func (r *Repo) List(ctx context.Context, conversationID string) ([]Message, error) {
	if conversationID == "" {
		return nil, ErrInvalidArgument
	}
	const q = `
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY seq
`
	rows, err := r.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListTx is List inside a caller-owned transaction; the escalation
// summary reads the transcript under the same tx that assigns.
func ListTx(ctx context.Context, tx *sql.Tx, conversationID string) ([]Message, error) {
	const q = `
SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY seq
`
	rows, err := tx.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
