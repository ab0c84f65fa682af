package users

import "time"

// User is a caller or a counselor, keyed externally by phone number.
//
// Callers are created lazily on the first webhook from an unseen phone
// number; counselors are registered explicitly. Phone uniqueness is
// enforced by the database (UNIQUE on users.phone) so concurrent lazy
// creation for the same caller cannot produce duplicates.

type User struct {
	ID    string `json:"id" db:"id"`
	Phone string `json:"phone" db:"phone"`
	Name  string `json:"name,omitempty" db:"name"`

	Role   Role   `json:"role" db:"role"`
	Status Status `json:"status" db:"status"`

	// Counselor-only profile fields.
	Specialties   string `json:"specialties,omitempty" db:"specialties"`
	LicenseNumber string `json:"license_number,omitempty" db:"license_number"`
	Bio           string `json:"bio,omitempty" db:"bio"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleCounselor Role = "counselor"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOffline:
		return true
	default:
		return false
	}
}
