// primary_role.go picks the single role label shown next to a principal's
// name in UIs. This is cosmetic only — authorization decisions come from the
// permission union in resolver.go, never from this pick.
package authz

import "github.com/platform-iam/platform-iam/internal/db/models"

// PrimaryRole selects the display role for a scope: a resource-specific
// grant wins over a global one, otherwise the first grant found, otherwise
// the placeholder role. Pure function over the grant list.
func PrimaryRole(grants []*models.AssignmentGrant, resourceID *string) RoleInfo {
	if resourceID != nil {
		for _, g := range grants {
			if g.ResourceID != nil && *g.ResourceID == *resourceID {
				return RoleInfo{Name: g.RoleName, DisplayName: g.RoleDisplayName}
			}
		}
	}
	if len(grants) > 0 {
		return RoleInfo{Name: grants[0].RoleName, DisplayName: grants[0].RoleDisplayName}
	}
	return RoleInfo{Name: PlaceholderRoleName, DisplayName: "Member"}
}
