package escalation

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type callRow struct {
	ID                  string
	Status              string
	ConversationID      string
	AssignedCounselorID string
}

type counselorRow struct {
	ID    string
	Phone string
}

func lockCall(ctx context.Context, tx *sql.Tx, callID string) (callRow, error) {
	const q = `
SELECT id, status, conversation_id, COALESCE(assigned_counselor_id::text,'')
FROM calls
WHERE id = $1
FOR UPDATE
`
	var c callRow
	if err := tx.QueryRowContext(ctx, q, callID).Scan(&c.ID, &c.Status, &c.ConversationID, &c.AssignedCounselorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return callRow{}, ErrCallNotFound
		}
		return callRow{}, err
	}
	return c, nil
}

// lockAnyAvailableCounselor picks the first available counselor and
// locks their row. SKIP LOCKED means a concurrent assignment that
// already holds the row is invisible here, so the loser of the race
// moves on to the next candidate instead of blocking or double-booking.
func lockAnyAvailableCounselor(ctx context.Context, tx *sql.Tx) (counselorRow, error) {
	const q = `
SELECT id, phone
FROM users
WHERE role = 'counselor' AND status = 'available'
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED
`
	var c counselorRow
	if err := tx.QueryRowContext(ctx, q).Scan(&c.ID, &c.Phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return counselorRow{}, ErrNoCounselorAvailable
		}
		return counselorRow{}, err
	}
	return c, nil
}

func lockCounselor(ctx context.Context, tx *sql.Tx, counselorID string) (counselorRow, error) {
	const q = `
SELECT id, phone
FROM users
WHERE id = $1 AND role = 'counselor'
FOR UPDATE
`
	var c counselorRow
	if err := tx.QueryRowContext(ctx, q, counselorID).Scan(&c.ID, &c.Phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return counselorRow{}, ErrNoCounselorAvailable
		}
		return counselorRow{}, err
	}
	return c, nil
}

// markCounselorBusy is the compare-and-swap: it succeeds only if the
// counselor was still available under the lock.
func markCounselorBusy(ctx context.Context, tx *sql.Tx, counselorID string, now time.Time) error {
	const q = `
UPDATE users SET status = 'busy', updated_at = $2
WHERE id = $1 AND status = 'available'
`
	res, err := tx.ExecContext(ctx, q, counselorID, now.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCounselorBusy
	}
	return nil
}

func insertEscalation(ctx context.Context, tx *sql.Tx, e Escalation) error {
	const q = `
INSERT INTO escalations (id, call_id, counselor_id, notes, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (call_id, counselor_id) DO NOTHING
`
	_, err := tx.ExecContext(ctx, q, e.ID, e.CallID, e.CounselorID, e.Notes, e.CreatedAt)
	return err
}

func assignCall(ctx context.Context, tx *sql.Tx, callID, counselorID string) error {
	const q = `
UPDATE calls SET status = 'counselor_assigned', assigned_counselor_id = $2
WHERE id = $1
`
	_, err := tx.ExecContext(ctx, q, callID, counselorID)
	return err
}

// findAssignment reconstructs an existing assignment for replayed
// escalation attempts on an already-assigned call.
func findAssignment(ctx context.Context, tx *sql.Tx, callID, counselorID string) (Assignment, error) {
	const q = `
SELECT e.id, e.call_id, e.counselor_id, e.notes, e.created_at, u.phone
FROM escalations e
JOIN users u ON u.id = e.counselor_id
WHERE e.call_id = $1 AND e.counselor_id = $2
LIMIT 1
`
	var out Assignment
	err := tx.QueryRowContext(ctx, q, callID, counselorID).Scan(
		&out.Escalation.ID,
		&out.Escalation.CallID,
		&out.Escalation.CounselorID,
		&out.Escalation.Notes,
		&out.Escalation.CreatedAt,
		&out.CounselorPhone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Assigned by a path that wrote no escalation row; still
			// return the counselor so the caller can be connected.
			var phone string
			const pq = `SELECT phone FROM users WHERE id = $1`
			if perr := tx.QueryRowContext(ctx, pq, counselorID).Scan(&phone); perr != nil {
				return Assignment{}, perr
			}
			return Assignment{CounselorID: counselorID, CounselorPhone: phone}, nil
		}
		return Assignment{}, err
	}
	out.CounselorID = out.Escalation.CounselorID
	return out, nil
}
