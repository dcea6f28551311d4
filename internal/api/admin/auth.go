// auth.go implements HTTP handlers for password login, refresh-token rotation,
// logout, and the password reset flow.
package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/authz"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
	"github.com/platform-iam/platform-iam/internal/middleware"
	"github.com/platform-iam/platform-iam/internal/services"
)

// AuthHandlers handles authentication-related endpoints
type AuthHandlers struct {
	sessions      *services.SessionService
	principalRepo *repositories.PrincipalRepository
	resolver      *authz.Resolver
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(sessions *services.SessionService, principalRepo *repositories.PrincipalRepository, resolver *authz.Resolver) *AuthHandlers {
	return &AuthHandlers{
		sessions:      sessions,
		principalRepo: principalRepo,
		resolver:      resolver,
	}
}

// LoginRequest carries the credentials for a password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Password login
// @Description  Verify email and password, returning an access/refresh token pair.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Login credentials"
// @Success      200  {object}  map[string]interface{}  "access_token, refresh_token, expires_in, principal"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Router       /api/v1/auth/login [post]
// LoginHandler verifies credentials and issues tokens
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		pair, principal, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
		if err != nil {
			respondError(c, err, "Login failed")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires_in":    pair.ExpiresIn,
			"principal": gin.H{
				"id":             principal.ID,
				"email":          principal.Email,
				"name":           principal.Name,
				"is_super_admin": principal.IsSuperAdmin,
			},
		})
	}
}

// RefreshRequest carries the single-use refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// @Summary      Rotate refresh token
// @Description  Exchange a refresh token for a new access/refresh pair. Each refresh token is single-use; presenting an already-used token revokes nothing further but is rejected.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  RefreshRequest  true  "Refresh token"
// @Success      200  {object}  map[string]interface{}  "access_token, refresh_token, expires_in"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Unknown, expired, or already-used token"
// @Router       /api/v1/auth/refresh [post]
// RefreshHandler rotates a refresh token
// POST /api/v1/auth/refresh
func (h *AuthHandlers) RefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		pair, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP())
		if err != nil {
			respondError(c, err, "Token refresh failed")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires_in":    pair.ExpiresIn,
		})
	}
}

// @Summary      Logout
// @Description  Revoke the presented refresh token. Revoking an unknown or already-revoked token succeeds silently.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  RefreshRequest  true  "Refresh token to revoke"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Router       /api/v1/auth/logout [post]
// LogoutHandler revokes a single refresh token
// POST /api/v1/auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if err := h.sessions.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			respondError(c, err, "Logout failed")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// @Summary      Logout everywhere
// @Description  Revoke every live refresh token belonging to the authenticated principal.
// @Tags         Authentication
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "revoked: count"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/auth/logout-all [post]
// LogoutAllHandler revokes all of the caller's refresh tokens
// POST /api/v1/auth/logout-all
func (h *AuthHandlers) LogoutAllHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principalID := c.GetString(middleware.CtxPrincipalID)
		if principalID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		revoked, err := h.sessions.LogoutAll(c.Request.Context(), principalID)
		if err != nil {
			respondError(c, err, "Failed to revoke sessions")
			return
		}

		c.JSON(http.StatusOK, gin.H{"revoked": revoked})
	}
}

// @Summary      Current principal
// @Description  Return the authenticated principal with their displayed role and effective global permissions.
// @Tags         Authentication
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "principal, role, permissions"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Principal not found"
// @Router       /api/v1/auth/me [get]
// MeHandler returns the caller's account, role label, and permission set
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principalID := c.GetString(middleware.CtxPrincipalID)
		if principalID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		principal, err := h.principalRepo.GetPrincipal(c.Request.Context(), principalID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load principal"})
			return
		}
		if principal == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Principal not found"})
			return
		}

		role, permissions, err := h.resolver.RoleAndPermissions(c.Request.Context(), principalID, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve permissions"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"principal": gin.H{
				"id":             principal.ID,
				"email":          principal.Email,
				"name":           principal.Name,
				"is_active":      principal.IsActive,
				"is_super_admin": principal.IsSuperAdmin,
				"created_at":     principal.CreatedAt,
				"updated_at":     principal.UpdatedAt,
			},
			"role": gin.H{
				"name":         role.Name,
				"display_name": role.DisplayName,
			},
			"permissions": permissions,
		})
	}
}

// PasswordResetRequest starts the reset flow for an email address.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// @Summary      Request password reset
// @Description  Send a reset link to the given email. Responds identically whether or not the account exists.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  PasswordResetRequest  true  "Account email"
// @Success      202  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      429  {object}  map[string]interface{}  "A reset was requested too recently"
// @Router       /api/v1/auth/password-reset/request [post]
// RequestPasswordResetHandler starts the reset flow
// POST /api/v1/auth/password-reset/request
func (h *AuthHandlers) RequestPasswordResetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PasswordResetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		err := h.sessions.RequestPasswordReset(c.Request.Context(), req.Email, c.ClientIP())
		if err != nil {
			// The cooldown is the one failure worth surfacing; everything else
			// hides behind the uniform accepted response.
			if errors.Is(err, auth.ErrConflict) {
				c.JSON(http.StatusTooManyRequests, gin.H{
					"error": "A reset was requested recently. Try again later.",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process request"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message": "If the account exists, a reset link has been sent",
		})
	}
}

// PasswordResetComplete finishes the reset flow with the emailed token.
type PasswordResetComplete struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// @Summary      Complete password reset
// @Description  Replace the account password using a valid, unconsumed reset token. All refresh tokens for the account are revoked.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        body  body  PasswordResetComplete  true  "Reset token and new password"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Unknown, expired, or consumed token"
// @Router       /api/v1/auth/password-reset/complete [post]
// CompletePasswordResetHandler finishes the reset flow
// POST /api/v1/auth/password-reset/complete
func (h *AuthHandlers) CompletePasswordResetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PasswordResetComplete
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		err := h.sessions.CompletePasswordReset(c.Request.Context(), req.Token, req.NewPassword, c.ClientIP())
		if err != nil {
			respondError(c, err, "Failed to reset password")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	}
}
