// assignments.go implements grant management (principal-to-role bindings,
// global or resource-scoped) and the effective-permission views backed by
// the authorization resolver.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/authz"
	"github.com/platform-iam/platform-iam/internal/db/models"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
)

// AssignmentHandlers handles grant management endpoints
type AssignmentHandlers struct {
	assignments *repositories.AssignmentRepository
	principals  *repositories.PrincipalRepository
	roles       *repositories.RoleRepository
	resources   *repositories.ResourceRepository
	resolver    *authz.Resolver
}

// NewAssignmentHandlers creates a new AssignmentHandlers instance
func NewAssignmentHandlers(
	assignments *repositories.AssignmentRepository,
	principals *repositories.PrincipalRepository,
	roles *repositories.RoleRepository,
	resources *repositories.ResourceRepository,
	resolver *authz.Resolver,
) *AssignmentHandlers {
	return &AssignmentHandlers{
		assignments: assignments,
		principals:  principals,
		roles:       roles,
		resources:   resources,
		resolver:    resolver,
	}
}

func grantJSON(g *models.AssignmentGrant) gin.H {
	return gin.H{
		"assignment_id":     g.AssignmentID,
		"principal_id":      g.PrincipalID,
		"role_id":           g.RoleID,
		"role_name":         g.RoleName,
		"role_display_name": g.RoleDisplayName,
		"verbs":             g.Verbs,
		"resource_id":       g.ResourceID,
		"resource_status":   g.ResourceStatus,
		"created_at":        g.CreatedAt,
	}
}

// GrantRequest is the payload for creating an assignment. A nil resource_id
// makes the grant global.
type GrantRequest struct {
	PrincipalID string  `json:"principal_id" binding:"required"`
	RoleID      string  `json:"role_id" binding:"required"`
	ResourceID  *string `json:"resource_id"`
}

// @Summary      Grant role
// @Description  Assign a role to a principal, globally or scoped to one resource. Duplicate (principal, role, scope) triples are rejected. DELETED resources cannot take new grants.
// @Tags         Assignments
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  GrantRequest  true  "Grant to create"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}  "Unknown principal, role, or resource"
// @Failure      409  {object}  map[string]interface{}  "Identical grant already exists or resource is DELETED"
// @Router       /api/v1/admin/assignments [post]
// GrantHandler creates an assignment
// POST /api/v1/admin/assignments
func (h *AssignmentHandlers) GrantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		ctx := c.Request.Context()

		principal, err := h.principals.GetPrincipal(ctx, req.PrincipalID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create grant"})
			return
		}
		if principal == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown principal"})
			return
		}

		role, err := h.roles.GetByID(ctx, req.RoleID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create grant"})
			return
		}
		if role == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
			return
		}

		if req.ResourceID != nil {
			res, err := h.resources.GetByID(ctx, *req.ResourceID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create grant"})
				return
			}
			if res == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown resource"})
				return
			}
			if res.Status == models.ResourceStatusDeleted {
				c.JSON(http.StatusConflict, gin.H{"error": "Resource is deleted"})
				return
			}
		}

		a := &models.Assignment{
			PrincipalID: req.PrincipalID,
			RoleID:      req.RoleID,
			ResourceID:  req.ResourceID,
		}
		if err := h.assignments.Create(ctx, a); err != nil {
			respondError(c, err, "Failed to create grant")
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":           a.ID,
			"principal_id": a.PrincipalID,
			"role_id":      a.RoleID,
			"resource_id":  a.ResourceID,
			"created_at":   a.CreatedAt,
		})
	}
}

// @Summary      Revoke grant
// @Description  Delete an assignment. Revoking an unknown assignment succeeds silently.
// @Tags         Assignments
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Assignment ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Router       /api/v1/admin/assignments/{id} [delete]
// RevokeHandler deletes an assignment
// DELETE /api/v1/admin/assignments/:id
func (h *AssignmentHandlers) RevokeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.assignments.Delete(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke grant"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Grant revoked"})
	}
}

// @Summary      List grants for principal
// @Description  Return every grant held by the principal, global and resource-scoped, regardless of resource lifecycle state.
// @Tags         Assignments
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Principal ID"
// @Success      200  {object}  map[string]interface{}  "grants"
// @Failure      404  {object}  map[string]interface{}  "Principal not found"
// @Router       /api/v1/admin/principals/{id}/grants [get]
// ListPrincipalGrantsHandler lists all grants for a principal
// GET /api/v1/admin/principals/:id/grants
func (h *AssignmentHandlers) ListPrincipalGrantsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		principal, err := h.principals.GetPrincipal(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list grants"})
			return
		}
		if principal == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Principal not found"})
			return
		}

		grants, err := h.assignments.ListAllGrantsForPrincipal(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list grants"})
			return
		}

		out := make([]gin.H, 0, len(grants))
		for _, g := range grants {
			out = append(out, grantJSON(g))
		}

		c.JSON(http.StatusOK, gin.H{"grants": out})
	}
}

// @Summary      List grants on resource
// @Description  Return every grant scoped to the resource.
// @Tags         Assignments
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Resource ID"
// @Success      200  {object}  map[string]interface{}  "grants"
// @Failure      404  {object}  map[string]interface{}  "Resource not found"
// @Router       /api/v1/admin/resources/{id}/grants [get]
// ListResourceGrantsHandler lists the grants scoped to a resource
// GET /api/v1/admin/resources/:id/grants
func (h *AssignmentHandlers) ListResourceGrantsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		res, err := h.resources.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list grants"})
			return
		}
		if res == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
			return
		}

		grants, err := h.assignments.ListGrantsForResource(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list grants"})
			return
		}

		out := make([]gin.H, 0, len(grants))
		for _, g := range grants {
			out = append(out, grantJSON(g))
		}

		c.JSON(http.StatusOK, gin.H{"grants": out})
	}
}

// @Summary      Effective permissions
// @Description  Resolve the principal's displayed role and effective permission union, globally or within a resource via the resource_id query parameter.
// @Tags         Assignments
// @Security     Bearer
// @Produce      json
// @Param        id           path   string  true   "Principal ID"
// @Param        resource_id  query  string  false  "Resolve within this resource scope"
// @Success      200  {object}  map[string]interface{}  "role, permissions"
// @Failure      404  {object}  map[string]interface{}  "Principal not found"
// @Router       /api/v1/admin/principals/{id}/permissions [get]
// EffectivePermissionsHandler resolves role and permissions for a principal
// GET /api/v1/admin/principals/:id/permissions
func (h *AssignmentHandlers) EffectivePermissionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		principal, err := h.principals.GetPrincipal(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve permissions"})
			return
		}
		if principal == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Principal not found"})
			return
		}

		var resourceID *string
		if rid := c.Query("resource_id"); rid != "" {
			resourceID = &rid
		}

		role, permissions, err := h.resolver.RoleAndPermissions(c.Request.Context(), id, resourceID)
		if err != nil {
			respondError(c, err, "Failed to resolve permissions")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"principal_id": id,
			"resource_id":  resourceID,
			"role": gin.H{
				"name":         role.Name,
				"display_name": role.DisplayName,
			},
			"permissions": permissions,
		})
	}
}
