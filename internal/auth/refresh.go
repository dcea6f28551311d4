// refresh.go generates opaque refresh tokens and the one-way digest under
// which they are persisted. Only the digest ever reaches the database or the
// logs; the bearer string exists client-side and in-flight.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// RefreshTokenBytes is the entropy of a refresh token.
const RefreshTokenBytes = 32

// GenerateRefreshToken returns a new opaque refresh token and its storage
// digest. The token is 256 random bits, base64url-encoded.
func GenerateRefreshToken() (token string, digest string, err error) {
	raw := make([]byte, RefreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, DigestToken(token), nil
}

// DigestToken computes the storage digest of an opaque token:
// sha256, base64url-encoded. SHA-256 (not bcrypt) is deliberate — the input
// already carries 256 bits of entropy, so a slow hash buys nothing, and the
// digest must be an indexable equality-lookup key.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
