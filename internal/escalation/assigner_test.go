package escalation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"careline/internal/conversations"

	"github.com/DATA-DOG/go-sqlmock"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestAssigner(t *testing.T) (*Assigner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	a := NewAssigner(db)
	a.clock = fixedClock
	return a, mock
}

func TestAssigner_RejectsInvalidArgs(t *testing.T) {
	a := NewAssigner(nil)

	if _, err := a.Assign(context.Background(), "", ReasonCrisis); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := a.Assign(context.Background(), "call-1", ReasonNone); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty reason, got %v", err)
	}
	if _, err := a.AssignTo(context.Background(), "call-1", "", ReasonTakeover); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty counselor, got %v", err)
	}
}

func TestAssigner_CallNotFound(t *testing.T) {
	a, mock := newTestAssigner(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, status, conversation_id").
		WithArgs("call-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "conversation_id", "coalesce"}))
	mock.ExpectRollback()

	_, err := a.Assign(context.Background(), "call-missing", ReasonCrisis)
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssigner_CompletedCallIsRejected(t *testing.T) {
	a, mock := newTestAssigner(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, status, conversation_id").
		WithArgs("call-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "conversation_id", "coalesce"}).
			AddRow("call-1", "completed", "conv-1", ""))
	mock.ExpectRollback()

	_, err := a.Assign(context.Background(), "call-1", ReasonProfessional)
	if !errors.Is(err, ErrCallCompleted) {
		t.Fatalf("expected ErrCallCompleted, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssigner_NoCounselorAvailable(t *testing.T) {
	a, mock := newTestAssigner(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, status, conversation_id").
		WithArgs("call-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "conversation_id", "coalesce"}).
			AddRow("call-1", "ai_handling", "conv-1", ""))
	mock.ExpectQuery("SELECT id, phone").
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone"}))
	mock.ExpectRollback()

	_, err := a.Assign(context.Background(), "call-1", ReasonCrisis)
	if !errors.Is(err, ErrNoCounselorAvailable) {
		t.Fatalf("expected ErrNoCounselorAvailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssigner_AssignsAvailableCounselor(t *testing.T) {
	a, mock := newTestAssigner(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, status, conversation_id").
		WithArgs("call-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "conversation_id", "coalesce"}).
			AddRow("call-1", "ai_handling", "conv-1", ""))
	mock.ExpectQuery("SELECT id, phone").
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone"}).
			AddRow("couns-1", "+15550001111"))
	mock.ExpectExec("UPDATE users SET status = 'busy'").
		WithArgs("couns-1", fixedClock()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, conversation_id, role, content").
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "role", "content", "created_at"}).
			AddRow("m1", "conv-1", "user", "I need a therapist", fixedClock()))
	mock.ExpectExec("INSERT INTO escalations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE calls SET status = 'counselor_assigned'").
		WithArgs("call-1", "couns-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	asg, err := a.Assign(context.Background(), "call-1", ReasonProfessional)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if asg.CounselorID != "couns-1" || asg.CounselorPhone != "+15550001111" {
		t.Fatalf("unexpected assignment: %+v", asg)
	}
	if !strings.HasPrefix(asg.Escalation.Notes, "Reason: requested_professional\nSummary: ") {
		t.Fatalf("unexpected notes: %q", asg.Escalation.Notes)
	}
	if !strings.Contains(asg.Escalation.Notes, "1 messages exchanged") {
		t.Fatalf("expected summary in notes, got %q", asg.Escalation.Notes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssigner_CounselorBusyRace(t *testing.T) {
	a, mock := newTestAssigner(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, status, conversation_id").
		WithArgs("call-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "conversation_id", "coalesce"}).
			AddRow("call-1", "ai_handling", "conv-1", ""))
	mock.ExpectQuery("SELECT id, phone").
		WithArgs("couns-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone"}).
			AddRow("couns-1", "+15550001111"))
	mock.ExpectExec("UPDATE users SET status = 'busy'").
		WithArgs("couns-1", fixedClock()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := a.AssignTo(context.Background(), "call-1", "couns-1", ReasonTakeover)
	if !errors.Is(err, ErrCounselorBusy) {
		t.Fatalf("expected ErrCounselorBusy, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssigner_ReplayReturnsExistingAssignment(t *testing.T) {
	a, mock := newTestAssigner(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, status, conversation_id").
		WithArgs("call-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "conversation_id", "coalesce"}).
			AddRow("call-1", "counselor_assigned", "conv-1", "couns-1"))
	mock.ExpectQuery("SELECT e.id, e.call_id, e.counselor_id").
		WithArgs("call-1", "couns-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "call_id", "counselor_id", "notes", "created_at", "phone"}).
			AddRow("esc-1", "call-1", "couns-1", "Reason: crisis\nSummary: x", fixedClock(), "+15550001111"))
	mock.ExpectCommit()

	asg, err := a.Assign(context.Background(), "call-1", ReasonCrisis)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if asg.CounselorID != "couns-1" || asg.CounselorPhone != "+15550001111" {
		t.Fatalf("unexpected assignment: %+v", asg)
	}
	if asg.Escalation.ID != "esc-1" {
		t.Fatalf("expected existing escalation row, got %+v", asg.Escalation)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTruncationSummary(t *testing.T) {
	if got := TruncationSummary(nil); got != "No conversation history available." {
		t.Fatalf("unexpected empty summary: %q", got)
	}

	msgs := []conversations.Message{
		{Role: conversations.MessageRoleUser, Content: "hello"},
		{Role: conversations.MessageRoleAssistant, Content: "hi, how are you feeling"},
	}
	got := TruncationSummary(msgs)
	if !strings.Contains(got, "2 messages exchanged") {
		t.Fatalf("expected message count, got %q", got)
	}
	if !strings.Contains(got, "user: hello") {
		t.Fatalf("expected topics, got %q", got)
	}

	long := []conversations.Message{{Role: conversations.MessageRoleUser, Content: strings.Repeat("a", 500)}}
	got = TruncationSummary(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation suffix, got %q", got)
	}
	if strings.Count(got, "a") > 210 {
		t.Fatalf("topics not capped: %d chars", len(got))
	}
}

func TestTruncationSummary_CutsOnRuneBoundary(t *testing.T) {
	// Multi-byte runes straddling the cap must not be split mid-sequence.
	multi := []conversations.Message{{
		Role:    conversations.MessageRoleUser,
		Content: strings.Repeat("€", 300),
	}}
	got := TruncationSummary(multi)
	if !utf8.ValidString(got) {
		t.Fatalf("summary contains invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation suffix, got %q", got)
	}
}
