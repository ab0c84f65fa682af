package escalation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"careline/internal/conversations"
	"careline/pkg/utils"

	"github.com/google/uuid"
)

// NOTE: This service assumes the following table exists:
//
//   escalations (
//     id uuid PRIMARY KEY,
//     call_id uuid NOT NULL REFERENCES calls(id),
//     counselor_id uuid NOT NULL REFERENCES users(id),
//     notes text NOT NULL,
//     created_at timestamptz NOT NULL,
//     UNIQUE (call_id, counselor_id)
//   )

var (
	ErrNoCounselorAvailable = errors.New("no counselor available")
	ErrCallNotFound         = errors.New("escalation: call not found")
	ErrCallCompleted        = errors.New("escalation: call already completed")
	ErrCounselorBusy        = errors.New("escalation: counselor not available")
	ErrInvalidArgument      = errors.New("escalation: invalid argument")
)

// Summarizer condenses a transcript into the escalation note. The
// default is a naive truncation; swap in a smarter summarizer without
// touching the assignment contract.
type Summarizer func(msgs []conversations.Message) string

// Assigner routes a call to a counselor.
//
// Concurrency invariants:
// - Counselor selection and busy-flagging happen in one transaction
//   with row locks, so two concurrent escalations cannot pick the same
//   counselor (SKIP LOCKED steers the loser to the next candidate).
// - The call row is locked first; a replayed escalating utterance finds
//   the call already counselor_assigned and returns the existing
//   assignment instead of double-booking.
type Assigner struct {
	db *sql.DB

	Summarize Summarizer
	clock     func() time.Time
}

func NewAssigner(db *sql.DB) *Assigner {
	return &Assigner{db: db, Summarize: TruncationSummary, clock: time.Now}
}

// Assign picks any available counselor (first found; no specialty
// ranking) and routes the call to them.
func (a *Assigner) Assign(ctx context.Context, callID string, reason Reason) (Assignment, error) {
	return a.assign(ctx, callID, "", reason)
}

// AssignTo routes the call to one specific counselor, e.g. an explicit
// takeover by the authenticated counselor.
func (a *Assigner) AssignTo(ctx context.Context, callID, counselorID string, reason Reason) (Assignment, error) {
	if counselorID == "" {
		return Assignment{}, ErrInvalidArgument
	}
	return a.assign(ctx, callID, counselorID, reason)
}

func (a *Assigner) assign(ctx context.Context, callID, counselorID string, reason Reason) (Assignment, error) {
	if callID == "" || reason == ReasonNone {
		return Assignment{}, ErrInvalidArgument
	}

	now := a.clock().UTC()
	var out Assignment

	err := utils.WithTx(ctx, a.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		call, err := lockCall(ctx, tx, callID)
		if err != nil {
			return err
		}
		switch call.Status {
		case "completed":
			return ErrCallCompleted
		case "counselor_assigned":
			// Replay: hand back the existing assignment unchanged.
			existing, err := findAssignment(ctx, tx, call.ID, call.AssignedCounselorID)
			if err != nil {
				return err
			}
			out = existing
			return nil
		}

		var counselor counselorRow
		if counselorID != "" {
			counselor, err = lockCounselor(ctx, tx, counselorID)
		} else {
			counselor, err = lockAnyAvailableCounselor(ctx, tx)
		}
		if err != nil {
			return err
		}

		// Compare-and-swap: assign only if still available.
		if err := markCounselorBusy(ctx, tx, counselor.ID, now); err != nil {
			return err
		}

		msgs, err := conversations.ListTx(ctx, tx, call.ConversationID)
		if err != nil {
			return err
		}
		esc := Escalation{
			ID:          uuid.NewString(),
			CallID:      call.ID,
			CounselorID: counselor.ID,
			Notes:       fmt.Sprintf("Reason: %s\nSummary: %s", reason, a.Summarize(msgs)),
			CreatedAt:   now,
		}
		if err := insertEscalation(ctx, tx, esc); err != nil {
			return err
		}
		if err := assignCall(ctx, tx, call.ID, counselor.ID); err != nil {
			return err
		}

		out = Assignment{
			Escalation:     esc,
			CounselorID:    counselor.ID,
			CounselorPhone: counselor.Phone,
		}
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}
	return out, nil
}

// TruncationSummary is the placeholder transcript summary: message
// count plus the leading topic text, capped at 200 characters.
func TruncationSummary(msgs []conversations.Message) string {
	if len(msgs) == 0 {
		return "No conversation history available."
	}
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	topics := b.String()
	if len(topics) > 200 {
		// Back off to a rune boundary so the cut never leaves invalid UTF-8.
		cut := 200
		for cut > 0 && !utf8.RuneStart(topics[cut]) {
			cut--
		}
		topics = topics[:cut]
	}
	return fmt.Sprintf("Conversation summary: %d messages exchanged. Key topics: %s...", len(msgs), topics)
}
