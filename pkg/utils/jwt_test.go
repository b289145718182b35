package utils

import (
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	SetSecret("test-secret")

	token, err := GenerateToken("operator-1", []string{"admin"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "operator-1" {
		t.Fatalf("expected operator-1, got %s", claims.UserID)
	}
}

func TestValidateTokenRejectsOtherSecret(t *testing.T) {
	SetSecret("first")
	token, err := GenerateToken("operator-1", nil, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	SetSecret("second")
	if _, err := ValidateToken(token); err == nil {
		t.Fatal("expected validation to fail with a different secret")
	}
}

func TestTokenExpiryWithoutSecret(t *testing.T) {
	SetSecret("remote-only")
	token, err := GenerateToken("pos", nil, 2*time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	SetSecret("unrelated")

	exp, err := TokenExpiry(token)
	if err != nil {
		t.Fatalf("TokenExpiry: %v", err)
	}
	if d := time.Until(exp); d < 119*time.Minute || d > 121*time.Minute {
		t.Fatalf("unexpected expiry distance %v", d)
	}

	if _, err := TokenExpiry("not-a-token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
