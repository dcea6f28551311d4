// audit_log.go defines the AuditLog model for recording security-relevant
// events: logins, token rotations, credential replacements, grants, and
// administrative changes.
package models

import "time"

// AuditLog represents one audit trail entry.
type AuditLog struct {
	ID          string
	PrincipalID *string // Nullable for system and anonymous actions
	ResourceID  *string
	Action      string  // "auth.login", "auth.refresh", "assignment.grant", ...
	TargetType  *string // "principal", "role", "resource", "api_key"
	TargetID    *string
	Metadata    map[string]interface{}
	IPAddress   *string
	CreatedAt   time.Time
}
