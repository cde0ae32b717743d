package utils

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParseJWT(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-test")

	token, err := GenerateJWT("alice", "admin")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != "alice" || claims.Role != "admin" || claims.Subject != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseJWTRejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-test")

	expired, err := GenerateJWTWithTTL("bob", "user", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWTWithTTL: %v", err)
	}
	if _, err := ParseJWT(expired); err == nil {
		t.Fatal("expected expired token to fail")
	}

	good, _ := GenerateJWT("bob", "user")
	t.Setenv("JWT_SECRET", "rotated")
	if _, err := ParseJWT(good); err == nil {
		t.Fatal("expected signature mismatch")
	}

	t.Setenv("JWT_SECRET", "")
	if _, err := GenerateJWT("bob", "user"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}
