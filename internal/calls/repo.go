package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// NOTE: This repository assumes the following table exists:
//
//   calls (
//     id uuid PRIMARY KEY,
//     user_id uuid NOT NULL REFERENCES users(id),
//     provider_call_sid text UNIQUE,
//     status text NOT NULL,
//     conversation_id uuid NOT NULL REFERENCES conversations(id),
//     assigned_counselor_id uuid REFERENCES users(id),
//     started_at timestamptz NOT NULL,
//     ended_at timestamptz
//   )
//
// UNIQUE(provider_call_sid) is load-bearing: concurrent first-contact
// webhooks for the same sid must collapse to one row.

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const callColumns = `id, user_id, COALESCE(provider_call_sid,''), status, conversation_id, COALESCE(assigned_counselor_id::text,''), started_at, ended_at`

func scanCall(row *sql.Row) (Call, error) {
	var c Call
	var endedAt sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.ProviderCallSid,
		&c.Status,
		&c.ConversationID,
		&c.AssignedCounselorID,
		&c.StartedAt,
		&endedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	return c, nil
}

func getByID(ctx context.Context, q querier, id string) (Call, error) {
	const query = `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	return scanCall(q.QueryRowContext(ctx, query, id))
}

func getByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (Call, error) {
	const query = `SELECT ` + callColumns + ` FROM calls WHERE id = $1 FOR UPDATE`
	return scanCall(tx.QueryRowContext(ctx, query, id))
}

func getBySid(ctx context.Context, q querier, sid string) (Call, error) {
	const query = `SELECT ` + callColumns + ` FROM calls WHERE provider_call_sid = $1`
	return scanCall(q.QueryRowContext(ctx, query, sid))
}

func getBySidForUpdate(ctx context.Context, tx *sql.Tx, sid string) (Call, error) {
	const query = `SELECT ` + callColumns + ` FROM calls WHERE provider_call_sid = $1 FOR UPDATE`
	return scanCall(tx.QueryRowContext(ctx, query, sid))
}

// latestActive returns the most recently started non-completed
// ai_handling call. Used by the permissive terminate-by-sid fallback
// and the active-call check.
func latestActive(ctx context.Context, q querier, status Status) (Call, error) {
	const query = `
SELECT ` + callColumns + `
FROM calls
WHERE status = $1 AND ended_at IS NULL
ORDER BY started_at DESC
LIMIT 1
`
	return scanCall(q.QueryRowContext(ctx, query, status))
}

// insertCall creates the call row. Returns false, without error, when
// a concurrent creator already inserted a row for the same sid.
func insertCall(ctx context.Context, tx *sql.Tx, c Call) (bool, error) {
	const query = `
INSERT INTO calls (id, user_id, provider_call_sid, status, conversation_id, started_at)
VALUES ($1,$2,NULLIF($3,''),$4,$5,$6)
ON CONFLICT (provider_call_sid) DO NOTHING
`
	res, err := tx.ExecContext(ctx, query, c.ID, c.UserID, c.ProviderCallSid, c.Status, c.ConversationID, c.StartedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// markCompleted transitions the call to completed exactly once. The
// status predicate makes terminal-status replays no-ops.
func markCompleted(ctx context.Context, tx *sql.Tx, callID string, endedAt time.Time) (bool, error) {
	const query = `
UPDATE calls SET status = $2, ended_at = $3
WHERE id = $1 AND status <> $2
`
	res, err := tx.ExecContext(ctx, query, callID, StatusCompleted, endedAt.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// releaseCounselor flips a busy counselor back to available, but only
// when no other non-completed call still holds them. The predicate
// makes the release safe to race a fresh assignment: an assignment in
// flight re-attaches a non-completed call and keeps the row busy.
func releaseCounselor(ctx context.Context, tx *sql.Tx, counselorID string, now time.Time) error {
	const query = `
UPDATE users SET status = 'available', updated_at = $2
WHERE id = $1 AND status = 'busy'
  AND NOT EXISTS (
    SELECT 1 FROM calls
    WHERE assigned_counselor_id = $1 AND status <> 'completed'
  )
`
	_, err := tx.ExecContext(ctx, query, counselorID, now.UTC())
	return err
}
