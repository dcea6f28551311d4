// role.go defines the Role model for named permission-verb sets, seeded from
// the authz catalog. System roles are immutable through the API.
package models

import "time"

// Role represents a named set of permission verbs. Roles are global entities;
// scoping happens at assignment time, not on the role itself.
type Role struct {
	ID          string
	Name        string
	DisplayName string
	Description *string
	Verbs       []string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
