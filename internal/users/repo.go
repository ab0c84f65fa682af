package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// NOTE: This repository assumes the following table exists:
//
//   users (
//     id uuid PRIMARY KEY,
//     phone text NOT NULL UNIQUE,
//     name text,
//     role text NOT NULL,
//     status text NOT NULL,
//     specialties text,
//     license_number text,
//     bio text,
//     created_at timestamptz NOT NULL,
//     updated_at timestamptz NOT NULL
//   )
//
// The UNIQUE(phone) constraint is load-bearing: lazy caller creation
// relies on upsert semantics, never read-then-write.

var (
	ErrNotFound        = errors.New("user not found")
	ErrInvalidArgument = errors.New("users: invalid argument")
)

type Repo struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db, clock: time.Now}
}

const userColumns = `id, phone, COALESCE(name,''), role, status, COALESCE(specialties,''), COALESCE(license_number,''), COALESCE(bio,''), created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Phone,
		&u.Name,
		&u.Role,
		&u.Status,
		&u.Specialties,
		&u.LicenseNumber,
		&u.Bio,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrInvalidArgument
	}
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

func (r *Repo) GetByPhone(ctx context.Context, phone string) (User, error) {
	if phone == "" {
		return User{}, ErrInvalidArgument
	}
	const q = `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, phone))
}

// SetStatus updates a counselor's availability. Only counselors have
// operator-controlled availability; caller rows are untouched.
func (r *Repo) SetStatus(ctx context.Context, userID string, status Status) error {
	if userID == "" || !ValidStatus(status) {
		return ErrInvalidArgument
	}
	const q = `
UPDATE users SET status = $2, updated_at = $3
WHERE id = $1 AND role = $4
`
	res, err := r.db.ExecContext(ctx, q, userID, status, r.clock().UTC(), RoleCounselor)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RegisterCounselor creates a counselor profile. The phone uniqueness
// constraint surfaces duplicate registrations as a database error.
func (r *Repo) RegisterCounselor(ctx context.Context, phone, name, specialties, licenseNumber, bio string) (User, error) {
	if phone == "" || name == "" {
		return User{}, ErrInvalidArgument
	}
	now := r.clock().UTC()
	const q = `
INSERT INTO users (id, phone, name, role, status, specialties, license_number, bio, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),NULLIF($8,''),$9,$9)
RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q,
		uuid.NewString(), phone, name, RoleCounselor, StatusOffline,
		specialties, licenseNumber, bio, now,
	))
}

// UpsertByPhoneTx creates a caller row for an unseen phone number, or
// returns the existing one. The DO UPDATE no-op makes RETURNING yield
// the surviving row either way, so duplicate webhook deliveries are
// safe under concurrency.
func UpsertByPhoneTx(ctx context.Context, tx *sql.Tx, phone string, now time.Time) (User, error) {
	if phone == "" {
		return User{}, ErrInvalidArgument
	}
	const q = `
INSERT INTO users (id, phone, role, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (phone) DO UPDATE SET updated_at = EXCLUDED.updated_at
RETURNING ` + userColumns
	return scanUser(tx.QueryRowContext(ctx, q, uuid.NewString(), phone, RoleUser, StatusOffline, now.UTC()))
}
