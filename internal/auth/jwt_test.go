package auth

import (
	"os"
	"sync"
	"testing"
	"time"
)

// resetJWTSecret resets the package-level sync.Once so tests can set a fresh secret.
// This is only safe to call from test code.
func resetJWTSecret() {
	jwtSecret = ""
	jwtSecretOnce = sync.Once{}
	jwtSecretErr = nil
}

func TestMain(m *testing.M) {
	// Set a known test secret before any test runs.
	// The sync.Once will capture this value on first call to ValidateJWTSecret.
	os.Setenv("IAM_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")
	os.Exit(m.Run())
}

func TestValidateJWTSecret(t *testing.T) {
	t.Run("valid secret from env", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("IAM_JWT_SECRET", "exactly-32-char-secret-for-test!!")
		if err := ValidateJWTSecret(); err != nil {
			t.Errorf("ValidateJWTSecret() unexpected error: %v", err)
		}
	})

	t.Run("production mode requires secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("IAM_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "")
		t.Setenv("GIN_MODE", "release")
		if err := ValidateJWTSecret(); err == nil {
			t.Error("ValidateJWTSecret() expected error in production mode without secret, got nil")
		}
	})

	t.Run("dev mode generates random secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("IAM_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "true")
		if err := ValidateJWTSecret(); err != nil {
			t.Errorf("ValidateJWTSecret() unexpected error in dev mode: %v", err)
		}
		if GetJWTSecret() == "" {
			t.Error("GetJWTSecret() returned empty string after dev mode init")
		}
	})
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	resetJWTSecret()
	t.Setenv("IAM_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")

	t.Run("round trip", func(t *testing.T) {
		token, err := GenerateAccessToken("principal-123", "test@example.com", false, []string{"read", "update"}, time.Hour)
		if err != nil {
			t.Fatalf("GenerateAccessToken() error: %v", err)
		}
		if token == "" {
			t.Fatal("GenerateAccessToken() returned empty token")
		}

		claims, err := ValidateAccessToken(token)
		if err != nil {
			t.Fatalf("ValidateAccessToken() error: %v", err)
		}
		if claims.PrincipalID != "principal-123" {
			t.Errorf("claims.PrincipalID = %q, want %q", claims.PrincipalID, "principal-123")
		}
		if claims.Email != "test@example.com" {
			t.Errorf("claims.Email = %q, want %q", claims.Email, "test@example.com")
		}
		if claims.SuperAdmin {
			t.Error("claims.SuperAdmin = true, want false")
		}
		if len(claims.Permissions) != 2 {
			t.Errorf("len(claims.Permissions) = %d, want 2", len(claims.Permissions))
		}
	})

	t.Run("super admin flag survives round trip", func(t *testing.T) {
		token, err := GenerateAccessToken("root-1", "root@example.com", true, nil, time.Hour)
		if err != nil {
			t.Fatalf("GenerateAccessToken() error: %v", err)
		}
		claims, err := ValidateAccessToken(token)
		if err != nil {
			t.Fatalf("ValidateAccessToken() error: %v", err)
		}
		if !claims.SuperAdmin {
			t.Error("claims.SuperAdmin = false, want true")
		}
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token, err := GenerateAccessToken("principal-123", "test@example.com", false, nil, -time.Minute)
		if err != nil {
			t.Fatalf("GenerateAccessToken() error: %v", err)
		}
		if _, err := ValidateAccessToken(token); err == nil {
			t.Error("ValidateAccessToken() accepted an expired token")
		}
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		if _, err := ValidateAccessToken("not.a.jwt"); err == nil {
			t.Error("ValidateAccessToken() accepted a malformed token")
		}
	})

	t.Run("token signed with different secret is rejected", func(t *testing.T) {
		token, err := GenerateAccessToken("principal-123", "test@example.com", false, nil, time.Hour)
		if err != nil {
			t.Fatalf("GenerateAccessToken() error: %v", err)
		}

		resetJWTSecret()
		t.Setenv("IAM_JWT_SECRET", "a-completely-different-32ch-secret")
		if _, err := ValidateAccessToken(token); err == nil {
			t.Error("ValidateAccessToken() accepted a token signed with another secret")
		}

		resetJWTSecret()
		t.Setenv("IAM_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")
	})
}
