// roles.go implements role management. System roles come from the built-in
// catalog and are read-only through this surface; custom roles are fully
// mutable.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/authz"
	"github.com/platform-iam/platform-iam/internal/db/models"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
)

// RoleHandlers handles role management endpoints
type RoleHandlers struct {
	repo *repositories.RoleRepository
}

// NewRoleHandlers creates a new RoleHandlers instance
func NewRoleHandlers(repo *repositories.RoleRepository) *RoleHandlers {
	return &RoleHandlers{repo: repo}
}

func roleJSON(r *models.Role) gin.H {
	return gin.H{
		"id":           r.ID,
		"name":         r.Name,
		"display_name": r.DisplayName,
		"description":  r.Description,
		"verbs":        r.Verbs,
		"is_system":    r.IsSystem,
		"created_at":   r.CreatedAt,
		"updated_at":   r.UpdatedAt,
	}
}

// @Summary      List roles
// @Tags         Roles
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "roles"
// @Router       /api/v1/admin/roles [get]
// ListRolesHandler returns every role, system roles first
// GET /api/v1/admin/roles
func (h *RoleHandlers) ListRolesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, err := h.repo.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list roles"})
			return
		}

		out := make([]gin.H, 0, len(roles))
		for _, r := range roles {
			out = append(out, roleJSON(r))
		}

		c.JSON(http.StatusOK, gin.H{"roles": out})
	}
}

// @Summary      Get role
// @Tags         Roles
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Role ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Role not found"
// @Router       /api/v1/admin/roles/{id} [get]
// GetRoleHandler returns a single role
// GET /api/v1/admin/roles/:id
func (h *RoleHandlers) GetRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get role"})
			return
		}
		if role == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
			return
		}

		c.JSON(http.StatusOK, roleJSON(role))
	}
}

// CreateRoleRequest is the payload for a custom role.
type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	DisplayName string   `json:"display_name" binding:"required"`
	Description *string  `json:"description"`
	Verbs       []string `json:"verbs" binding:"required,min=1"`
}

// @Summary      Create role
// @Description  Create a custom role from a set of known verbs. Unknown verbs are rejected.
// @Tags         Roles
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateRoleRequest  true  "New role"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}  "Invalid request or unknown verb"
// @Failure      409  {object}  map[string]interface{}  "Role name already exists"
// @Router       /api/v1/admin/roles [post]
// CreateRoleHandler creates a custom role
// POST /api/v1/admin/roles
func (h *RoleHandlers) CreateRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if _, err := authz.ParseVerbs(req.Verbs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		existing, err := h.repo.GetByName(c.Request.Context(), req.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create role"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Role name already exists"})
			return
		}

		role := &models.Role{
			Name:        req.Name,
			DisplayName: req.DisplayName,
			Description: req.Description,
			Verbs:       req.Verbs,
			IsSystem:    false,
		}
		if err := h.repo.Create(c.Request.Context(), role); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create role"})
			return
		}

		c.JSON(http.StatusCreated, roleJSON(role))
	}
}

// UpdateRoleRequest carries the mutable role fields. Omitted fields keep
// their current value. The role name is immutable.
type UpdateRoleRequest struct {
	DisplayName *string  `json:"display_name"`
	Description *string  `json:"description"`
	Verbs       []string `json:"verbs"`
}

// @Summary      Update role
// @Description  Update a custom role's display name, description, or verb set. System roles are immutable.
// @Tags         Roles
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "Role ID"
// @Param        body  body  UpdateRoleRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Role not found"
// @Failure      409  {object}  map[string]interface{}  "System role is immutable"
// @Router       /api/v1/admin/roles/{id} [put]
// UpdateRoleHandler updates a custom role
// PUT /api/v1/admin/roles/:id
func (h *RoleHandlers) UpdateRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		role, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update role"})
			return
		}
		if role == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
			return
		}

		if req.DisplayName != nil {
			role.DisplayName = *req.DisplayName
		}
		if req.Description != nil {
			role.Description = req.Description
		}
		if req.Verbs != nil {
			if _, err := authz.ParseVerbs(req.Verbs); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			role.Verbs = req.Verbs
		}

		if err := h.repo.Update(c.Request.Context(), role); err != nil {
			respondError(c, err, "Failed to update role")
			return
		}

		c.JSON(http.StatusOK, roleJSON(role))
	}
}

// @Summary      Delete role
// @Description  Delete a custom role. System roles cannot be deleted. Assignments referencing the role are removed with it.
// @Tags         Roles
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Role ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Role not found"
// @Failure      409  {object}  map[string]interface{}  "System role cannot be deleted"
// @Router       /api/v1/admin/roles/{id} [delete]
// DeleteRoleHandler deletes a custom role
// DELETE /api/v1/admin/roles/:id
func (h *RoleHandlers) DeleteRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err, "Failed to delete role")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Role deleted"})
	}
}
