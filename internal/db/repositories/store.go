package repositories

// AuthzStore combines the principal and assignment repositories into the
// single store the permission resolver consumes. Embedding keeps GetPrincipal
// and ListGrants on their owning repositories.
type AuthzStore struct {
	*PrincipalRepository
	*AssignmentRepository
}

// NewAuthzStore creates the resolver-facing store from its two repositories.
func NewAuthzStore(principals *PrincipalRepository, assignments *AssignmentRepository) *AuthzStore {
	return &AuthzStore{
		PrincipalRepository:  principals,
		AssignmentRepository: assignments,
	}
}
