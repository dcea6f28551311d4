// password_reset.go defines the PasswordResetToken model: a time-boxed,
// single-use token issued by the reset flow. Only the digest is stored.
package models

import "time"

// PasswordResetToken is one reset request. ConsumedAt is set exactly once,
// when the reset completes; a consumed or expired token is never accepted.
type PasswordResetToken struct {
	ID          string
	PrincipalID string
	TokenDigest string
	ExpiresAt   time.Time
	ConsumedAt  *time.Time
	CreatedAt   time.Time
}

// Usable reports whether the token can still complete a reset as of now.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}
