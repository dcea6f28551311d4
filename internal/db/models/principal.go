// Package models defines the database model types for the identity platform.
// Each type corresponds to a database table. Models are pure data types —
// business logic belongs in the service and authz layers, query logic belongs
// in the repositories layer.
package models

import "time"

// Principal represents an authenticated actor (a user account).
type Principal struct {
	ID           string
	Email        string
	Name         string
	IsActive     bool
	IsSuperAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credential is the one-to-one password record for a principal. The hash is
// replaced — never appended — on password change or reset.
type Credential struct {
	PrincipalID  string
	PasswordHash string
	UpdatedAt    time.Time
	// UpdatedBy records who performed the last hash replacement: the
	// principal itself, an administrator, or the reset flow.
	UpdatedBy *string
}
