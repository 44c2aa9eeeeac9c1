package auth

import (
	"testing"
	"time"

	"salesops-console/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, "user-1", "jane@example.com", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "jane@example.com" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyUsesSuppliedClock(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	// A fixed epoch far from wall clock: verification must judge validity
	// at the supplied instant, not at time.Now.
	now := time.Unix(1700000000, 0).UTC()
	p, err := m.IssuePair(now, "u", "e@example.com", "r")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(30*time.Second)); err != nil {
		t.Fatalf("verify at issue epoch: %v", err)
	}
	// 15s past expiry is inside the 30s skew tolerance.
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(time.Minute+15*time.Second)); err != nil {
		t.Fatalf("verify inside leeway: %v", err)
	}
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(2*time.Minute)); err == nil {
		t.Fatalf("expected expiry past leeway")
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), "u", "e@example.com", "r")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Unix(1700000000, 0).UTC()
	p, err := m.IssuePair(now, "u", "e@example.com", "r")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(2*time.Minute)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	a, _ := NewManager(config.AuthConfig{JWTSecret: "secret-a", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	b, _ := NewManager(config.AuthConfig{JWTSecret: "secret-b", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := a.IssuePair(time.Now(), "u", "e@example.com", "r")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Verify(p.AccessToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected signature error")
	}
}
