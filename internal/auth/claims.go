package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeAccess TokenType = "access"

// Roles supported by the service. Callers are created lazily as plain
// users; counselors are registered explicitly.
const (
	RoleUser      = "user"
	RoleCounselor = "counselor"
)

// Claims are the only supported JWT claims shape for this service.
// Identity must always come from verified claims; there is no ambient
// "current counselor" anywhere in the codebase.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleCounselor:
		return true
	default:
		return false
	}
}
