package auth

import (
	"testing"
	"time"

	"careline/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "issuer",
		JWTAudience:    "aud",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.IssueAccess(now, "user-1", RoleCounselor)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok == "" {
		t.Fatalf("expected token string")
	}

	claims, err := m.Verify(tok, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != RoleCounselor {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestIssueAccess_RejectsUnknownRole(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	if _, err := m.IssueAccess(time.Now(), "u", "admin"); err == nil {
		t.Fatalf("expected unknown role error")
	}
}

func TestVerify_UsesInjectedClockNotWallClock(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})

	// Issued long in the past relative to the real wall clock; only the
	// injected verification time may decide expiry.
	issued := time.Unix(1500000000, 0).UTC()
	tok, err := m.IssueAccess(issued, "u", RoleUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Verify(tok, issued.Add(30*time.Second)); err != nil {
		t.Fatalf("verify within TTL must succeed regardless of wall clock: %v", err)
	}
	if _, err := m.Verify(tok, issued.Add(10*time.Minute)); err == nil {
		t.Fatalf("verify past TTL plus leeway must fail")
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.IssueAccess(now, "u", RoleUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// Past TTL plus the 30s leeway.
	if _, err := m.Verify(tok, now.Add(5*time.Minute)); err == nil {
		t.Fatalf("expected expiry error")
	}
}
