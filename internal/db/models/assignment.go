// assignment.go defines models for principal-to-role grants, either global
// (no resource scope) or bound to a single resource, plus the enriched view
// joining role and resource details used by the resolver.
package models

import "time"

// Assignment links a principal to a role, globally when ResourceID is nil or
// for one specific resource otherwise. The same (principal, role, scope)
// triple may exist at most once.
type Assignment struct {
	ID          string
	PrincipalID string
	RoleID      string
	ResourceID  *string
	CreatedAt   time.Time
}

// AssignmentGrant is an assignment joined with its role's verb set and, for
// resource-scoped grants, the resource's lifecycle status. This is the row
// shape the authorization resolver consumes.
type AssignmentGrant struct {
	AssignmentID    string
	PrincipalID     string
	RoleID          string
	RoleName        string
	RoleDisplayName string
	Verbs           []string
	ResourceID      *string
	ResourceStatus  *string
	CreatedAt       time.Time
}

// IsGlobal reports whether the grant has no resource scope.
func (g *AssignmentGrant) IsGlobal() bool {
	return g.ResourceID == nil
}
