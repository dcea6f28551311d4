// refresh_token.go defines the RefreshToken model. Rows store only a one-way
// digest of the bearer secret; the raw token never reaches the database or
// the logs.
package models

import "time"

// RefreshToken is one link in a rotation chain. At most one row per chain is
// live (revoked=false) at any time: rotation revokes the presented row and
// inserts its successor in the same transaction. Expiry is not stored — it is
// derived at lookup time from CreatedAt plus the configured maximum age.
type RefreshToken struct {
	ID          string
	PrincipalID string
	TokenDigest string
	Revoked     bool
	CreatedAt   time.Time
}

// ExpiredAt reports whether the token has outlived maxAge as of now.
func (t *RefreshToken) ExpiredAt(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.After(t.CreatedAt.Add(maxAge))
}
