// api_key.go defines the APIKey model: an alternate trust boundary for
// service-to-service callers that bypasses principal authentication.
package models

import "time"

// APIKey represents a long-lived service credential. Only a bcrypt hash of
// the full key is stored; the plaintext prefix exists solely to narrow the
// candidate set for the hash comparison.
type APIKey struct {
	ID          string
	Owner       string // Friendly owner label (e.g., "billing-service")
	Description *string
	KeyHash     string // Bcrypt hash of the full key
	KeyPrefix   string // First chars for display and indexed lookup (e.g., "iam_abc123")
	Scopes      []string
	Revoked     bool
	LastUsedAt  *time.Time
	CreatedAt   time.Time
}
