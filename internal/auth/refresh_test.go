package auth

import "testing"

func TestGenerateRefreshToken(t *testing.T) {
	t.Run("token and digest are non-empty and distinct", func(t *testing.T) {
		token, digest, err := GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken() error: %v", err)
		}
		if token == "" || digest == "" {
			t.Fatal("GenerateRefreshToken() returned empty token or digest")
		}
		if token == digest {
			t.Error("token and digest must differ")
		}
	})

	t.Run("digest is deterministic for a given token", func(t *testing.T) {
		token, digest, err := GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken() error: %v", err)
		}
		if DigestToken(token) != digest {
			t.Error("DigestToken(token) does not match the digest returned at generation")
		}
	})

	t.Run("successive tokens are unique", func(t *testing.T) {
		t1, d1, err := GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken() error: %v", err)
		}
		t2, d2, err := GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken() error: %v", err)
		}
		if t1 == t2 || d1 == d2 {
			t.Error("GenerateRefreshToken() produced duplicate tokens")
		}
	})
}
