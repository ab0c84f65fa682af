package mood

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewService(db)
	s.clock = fixedClock
	return s, mock
}

func TestCreate_ValidatesMoodRange(t *testing.T) {
	s := NewService(nil)
	ctx := context.Background()

	for _, mood := range []int{0, -1, 11, 100} {
		if _, err := s.Create(ctx, "user-1", mood, ""); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("mood %d must be rejected, got %v", mood, err)
		}
	}
	if _, err := s.Create(ctx, "", 5, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing user, got %v", err)
	}
}

func TestCreate_InsertsEntry(t *testing.T) {
	s, mock := newTestService(t)

	mock.ExpectExec("INSERT INTO mood_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	e, err := s.Create(context.Background(), "user-1", 7, "slept well")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if e.Mood != 7 || e.Note != "slept well" || e.UserID != "user-1" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if !e.EntryDate.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("entry date not truncated to day: %v", e.EntryDate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_BoundaryMoodsAccepted(t *testing.T) {
	s, mock := newTestService(t)

	mock.ExpectExec("INSERT INTO mood_entries").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mood_entries").WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := s.Create(context.Background(), "user-1", 1, ""); err != nil {
		t.Fatalf("mood 1 must be accepted, got %v", err)
	}
	if _, err := s.Create(context.Background(), "user-1", 10, ""); err != nil {
		t.Fatalf("mood 10 must be accepted, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListForUser(t *testing.T) {
	s, mock := newTestService(t)

	mock.ExpectQuery("FROM mood_entries").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "mood", "note", "entry_date", "created_at"}).
			AddRow("e2", "user-1", 8, "", fixedClock(), fixedClock()).
			AddRow("e1", "user-1", 4, "rough day", fixedClock().Add(-24*time.Hour), fixedClock().Add(-24*time.Hour)))

	entries, err := s.ListForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "e2" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if _, err := s.ListForUser(context.Background(), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
