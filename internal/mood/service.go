package mood

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// NOTE: This service assumes the following table exists:
//
//   mood_entries (
//     id uuid PRIMARY KEY,
//     user_id uuid NOT NULL REFERENCES users(id),
//     mood int NOT NULL CHECK (mood BETWEEN 1 AND 10),
//     note text,
//     entry_date date NOT NULL,
//     created_at timestamptz NOT NULL
//   )

// Entry is one self-reported mood data point, 1 (lowest) to 10.
type Entry struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Mood int    `json:"mood" db:"mood"`
	Note string `json:"note,omitempty" db:"note"`

	EntryDate time.Time `json:"entry_date" db:"entry_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

var ErrInvalidArgument = errors.New("mood: invalid argument")

type Service struct {
	db    *sql.DB
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

func (s *Service) Create(ctx context.Context, userID string, mood int, note string) (Entry, error) {
	if userID == "" {
		return Entry{}, ErrInvalidArgument
	}
	if mood < 1 || mood > 10 {
		return Entry{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	e := Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mood:      mood,
		Note:      note,
		EntryDate: now.Truncate(24 * time.Hour),
		CreatedAt: now,
	}
	const q = `
INSERT INTO mood_entries (id, user_id, mood, note, entry_date, created_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6)
`
	if _, err := s.db.ExecContext(ctx, q, e.ID, e.UserID, e.Mood, e.Note, e.EntryDate, e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]Entry, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	const q = `
SELECT id, user_id, mood, COALESCE(note,''), entry_date, created_at
FROM mood_entries
WHERE user_id = $1
ORDER BY entry_date DESC, created_at DESC
`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Mood, &e.Note, &e.EntryDate, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
