package auth_test

import (
	"errors"
	"testing"

	"github.com/yourbite/pos-api/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"

	token, err := auth.GenerateToken(secret, "admin", "ADMIN")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.Username != "admin" {
		t.Errorf("username: got %v, want admin", claims.Username)
	}
	if claims.Role != "ADMIN" {
		t.Errorf("role: got %v, want ADMIN", claims.Role)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", "admin", "ADMIN")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	refresh, err := auth.GenerateRefreshToken("secret", "admin")
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	if _, err := auth.ValidateToken("secret", refresh); err == nil {
		t.Fatal("refresh token must not pass as an access token")
	}

	sub, err := auth.ValidateRefreshToken("secret", refresh)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if sub != "admin" {
		t.Errorf("subject: got %q, want admin", sub)
	}
}

func TestCredentials(t *testing.T) {
	creds, err := auth.NewCredentials("admin", "yourbite123")
	if err != nil {
		t.Fatalf("new credentials: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"correct", "admin", "yourbite123", true},
		{"wrong password", "admin", "nope", false},
		{"wrong username", "root", "yourbite123", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := creds.Verify(tt.username, tt.password); got != tt.want {
				t.Errorf("Verify(%q, %q) = %v, want %v", tt.username, tt.password, got, tt.want)
			}
		})
	}

	if !creds.Known("admin") || creds.Known("root") {
		t.Error("Known should match only the configured username")
	}
}

func TestCredentialsFromHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	creds, err := auth.NewCredentials("admin", string(hash))
	if err != nil {
		t.Fatalf("new credentials: %v", err)
	}
	if !creds.Verify("admin", "s3cret") {
		t.Error("expected pre-hashed password to verify")
	}
}

func TestCredentialsRequired(t *testing.T) {
	if _, err := auth.NewCredentials("admin", ""); !errors.Is(err, auth.ErrMissingCredentials) {
		t.Errorf("got %v, want ErrMissingCredentials", err)
	}
}
