// principals.go implements the admin CRUD surface for principals (user
// accounts) and admin-driven credential replacement.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/config"
	"github.com/platform-iam/platform-iam/internal/db/models"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
	"github.com/platform-iam/platform-iam/internal/middleware"
	"github.com/platform-iam/platform-iam/internal/services"
)

// PrincipalHandlers handles principal management endpoints
type PrincipalHandlers struct {
	cfg      *config.Config
	repo     *repositories.PrincipalRepository
	sessions *services.SessionService
}

// NewPrincipalHandlers creates a new PrincipalHandlers instance
func NewPrincipalHandlers(cfg *config.Config, repo *repositories.PrincipalRepository, sessions *services.SessionService) *PrincipalHandlers {
	return &PrincipalHandlers{cfg: cfg, repo: repo, sessions: sessions}
}

func principalJSON(p *models.Principal) gin.H {
	return gin.H{
		"id":             p.ID,
		"email":          p.Email,
		"name":           p.Name,
		"is_active":      p.IsActive,
		"is_super_admin": p.IsSuperAdmin,
		"created_at":     p.CreatedAt,
		"updated_at":     p.UpdatedAt,
	}
}

// @Summary      List principals
// @Description  Page through all principals.
// @Tags         Principals
// @Security     Bearer
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Page size (default 20, max 100)"
// @Success      200  {object}  map[string]interface{}  "principals, total, page, per_page"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Router       /api/v1/admin/principals [get]
// ListPrincipalsHandler returns a page of principals
// GET /api/v1/admin/principals
func (h *PrincipalHandlers) ListPrincipalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage, offset := parsePagination(c.Query("page"), c.Query("per_page"))

		principals, total, err := h.repo.List(c.Request.Context(), perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list principals"})
			return
		}

		out := make([]gin.H, 0, len(principals))
		for _, p := range principals {
			out = append(out, principalJSON(p))
		}

		c.JSON(http.StatusOK, gin.H{
			"principals": out,
			"total":      total,
			"page":       page,
			"per_page":   perPage,
		})
	}
}

// @Summary      Get principal
// @Tags         Principals
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Principal ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Principal not found"
// @Router       /api/v1/admin/principals/{id} [get]
// GetPrincipalHandler returns a single principal
// GET /api/v1/admin/principals/:id
func (h *PrincipalHandlers) GetPrincipalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.repo.GetPrincipal(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get principal"})
			return
		}
		if p == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Principal not found"})
			return
		}

		c.JSON(http.StatusOK, principalJSON(p))
	}
}

// CreatePrincipalRequest is the payload for creating a principal.
type CreatePrincipalRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Name         string `json:"name" binding:"required"`
	Password     string `json:"password" binding:"required,min=8"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

// @Summary      Create principal
// @Description  Create an active principal with an initial password. Only a super admin may create another super admin.
// @Tags         Principals
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreatePrincipalRequest  true  "New principal"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      403  {object}  map[string]interface{}  "Super admin required"
// @Failure      409  {object}  map[string]interface{}  "Email already in use"
// @Router       /api/v1/admin/principals [post]
// CreatePrincipalHandler creates a principal and its credential
// POST /api/v1/admin/principals
func (h *PrincipalHandlers) CreatePrincipalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreatePrincipalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if req.IsSuperAdmin && !c.GetBool(middleware.CtxSuperAdmin) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Only a super admin can grant super admin",
			})
			return
		}

		existing, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create principal"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
			return
		}

		hash, err := auth.HashPassword(req.Password, h.cfg.Auth.Tokens.BcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create principal"})
			return
		}

		p := &models.Principal{
			Email:        req.Email,
			Name:         req.Name,
			IsActive:     true,
			IsSuperAdmin: req.IsSuperAdmin,
		}
		if err := h.repo.Create(c.Request.Context(), p); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create principal"})
			return
		}

		actor := actorID(c)
		if err := h.repo.ReplaceCredential(c.Request.Context(), p.ID, hash, actor); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store credential"})
			return
		}

		c.JSON(http.StatusCreated, principalJSON(p))
	}
}

// UpdatePrincipalRequest carries the mutable principal fields. Omitted fields
// keep their current value.
type UpdatePrincipalRequest struct {
	Email *string `json:"email" binding:"omitempty,email"`
	Name  *string `json:"name"`
}

// @Summary      Update principal
// @Tags         Principals
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "Principal ID"
// @Param        body  body  UpdatePrincipalRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Principal not found"
// @Failure      409  {object}  map[string]interface{}  "Email already in use"
// @Router       /api/v1/admin/principals/{id} [put]
// UpdatePrincipalHandler updates name and/or email
// PUT /api/v1/admin/principals/:id
func (h *PrincipalHandlers) UpdatePrincipalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdatePrincipalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		p, err := h.repo.GetPrincipal(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update principal"})
			return
		}
		if p == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Principal not found"})
			return
		}

		if req.Email != nil && *req.Email != p.Email {
			other, err := h.repo.GetByEmail(c.Request.Context(), *req.Email)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update principal"})
				return
			}
			if other != nil {
				c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
				return
			}
			p.Email = *req.Email
		}
		if req.Name != nil {
			p.Name = *req.Name
		}

		if err := h.repo.Update(c.Request.Context(), p); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update principal"})
			return
		}

		c.JSON(http.StatusOK, principalJSON(p))
	}
}

// @Summary      Activate principal
// @Tags         Principals
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Principal ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Router       /api/v1/admin/principals/{id}/activate [post]
// ActivatePrincipalHandler re-enables a deactivated account
// POST /api/v1/admin/principals/:id/activate
func (h *PrincipalHandlers) ActivatePrincipalHandler() gin.HandlerFunc {
	return h.setActiveHandler(true)
}

// @Summary      Deactivate principal
// @Description  Disable the account and revoke all of its refresh tokens. Outstanding access tokens expire naturally.
// @Tags         Principals
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Principal ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Cannot deactivate yourself"
// @Router       /api/v1/admin/principals/{id}/deactivate [post]
// DeactivatePrincipalHandler disables an account
// POST /api/v1/admin/principals/:id/deactivate
func (h *PrincipalHandlers) DeactivatePrincipalHandler() gin.HandlerFunc {
	return h.setActiveHandler(false)
}

func (h *PrincipalHandlers) setActiveHandler(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		if !active && c.GetString(middleware.CtxPrincipalID) == id {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot deactivate yourself"})
			return
		}

		p, err := h.repo.GetPrincipal(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update principal"})
			return
		}
		if p == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Principal not found"})
			return
		}

		if err := h.repo.SetActive(c.Request.Context(), id, active); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update principal"})
			return
		}

		msg := "Principal activated"
		if !active {
			msg = "Principal deactivated"
			// Deactivation kills the session footprint too.
			if revoked, err := h.sessions.LogoutAll(c.Request.Context(), id); err == nil {
				c.JSON(http.StatusOK, gin.H{"message": msg, "sessions_revoked": revoked})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"message": msg})
	}
}

// @Summary      Delete principal
// @Tags         Principals
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Principal ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Cannot delete yourself"
// @Failure      404  {object}  map[string]interface{}  "Principal not found"
// @Router       /api/v1/admin/principals/{id} [delete]
// DeletePrincipalHandler removes a principal and its dependent rows
// DELETE /api/v1/admin/principals/:id
func (h *PrincipalHandlers) DeletePrincipalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		if c.GetString(middleware.CtxPrincipalID) == id {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
			return
		}

		p, err := h.repo.GetPrincipal(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete principal"})
			return
		}
		if p == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Principal not found"})
			return
		}

		if err := h.repo.Delete(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete principal"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Principal deleted"})
	}
}

// ReplacePasswordRequest carries the replacement password an admin sets.
type ReplacePasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// @Summary      Replace password
// @Description  Set a new password for the principal and revoke all of its refresh tokens.
// @Tags         Principals
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "Principal ID"
// @Param        body  body  ReplacePasswordRequest  true  "New password"
// @Success      200  {object}  map[string]interface{}  "message, sessions_revoked"
// @Failure      404  {object}  map[string]interface{}  "Principal not found"
// @Router       /api/v1/admin/principals/{id}/password [put]
// ReplacePasswordHandler replaces a principal's credential
// PUT /api/v1/admin/principals/:id/password
func (h *PrincipalHandlers) ReplacePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReplacePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		id := c.Param("id")
		p, err := h.repo.GetPrincipal(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to replace password"})
			return
		}
		if p == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Principal not found"})
			return
		}

		hash, err := auth.HashPassword(req.Password, h.cfg.Auth.Tokens.BcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to replace password"})
			return
		}

		if err := h.repo.ReplaceCredential(c.Request.Context(), id, hash, actorID(c)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to replace password"})
			return
		}

		revoked, err := h.sessions.LogoutAll(c.Request.Context(), id)
		if err != nil {
			// The password is already replaced; report success but note the
			// revocation failure.
			c.JSON(http.StatusOK, gin.H{
				"message":          "Password replaced",
				"sessions_revoked": int64(0),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":          "Password replaced",
			"sessions_revoked": revoked,
		})
	}
}

// actorID returns the authenticated principal id as a nullable pointer for
// attribution columns.
func actorID(c *gin.Context) *string {
	if id := c.GetString(middleware.CtxPrincipalID); id != "" {
		return &id
	}
	return nil
}
