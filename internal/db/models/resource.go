// resource.go defines the Resource model: the tenant-like scoping entity
// (department/project/organization) against which roles are granted.
package models

import "time"

// ResourceStatus is the lifecycle state of a resource.
type ResourceStatus string

const (
	ResourceStatusActive   ResourceStatus = "ACTIVE"
	ResourceStatusInactive ResourceStatus = "INACTIVE"
	ResourceStatusDeleted  ResourceStatus = "DELETED"
)

// Resource represents a scoping entity in the platform.
type Resource struct {
	ID          string
	Name        string
	DisplayName string
	Status      ResourceStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanTransitionTo reports whether moving to next is a legal lifecycle step.
// Transitions are one-way toward DELETED: ACTIVE↔INACTIVE is allowed, but
// nothing leaves DELETED.
func (s ResourceStatus) CanTransitionTo(next ResourceStatus) bool {
	switch s {
	case ResourceStatusActive:
		return next == ResourceStatusInactive || next == ResourceStatusDeleted
	case ResourceStatusInactive:
		return next == ResourceStatusActive || next == ResourceStatusDeleted
	case ResourceStatusDeleted:
		return false
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s ResourceStatus) Valid() bool {
	switch s {
	case ResourceStatusActive, ResourceStatusInactive, ResourceStatusDeleted:
		return true
	}
	return false
}
