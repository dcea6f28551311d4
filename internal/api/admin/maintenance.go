// maintenance.go implements super-admin housekeeping endpoints. The same
// cleanups run on a schedule in the background jobs; these endpoints exist
// for running them on demand.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/db/repositories"
	"github.com/platform-iam/platform-iam/internal/services"
)

// MaintenanceHandlers handles on-demand housekeeping endpoints
type MaintenanceHandlers struct {
	sessions  *services.SessionService
	resetRepo *repositories.PasswordResetRepository
}

// NewMaintenanceHandlers creates a new MaintenanceHandlers instance
func NewMaintenanceHandlers(sessions *services.SessionService, resetRepo *repositories.PasswordResetRepository) *MaintenanceHandlers {
	return &MaintenanceHandlers{sessions: sessions, resetRepo: resetRepo}
}

// @Summary      Prune revoked tokens
// @Description  Delete revoked refresh tokens older than the configured retention window. Live tokens are never touched.
// @Tags         Maintenance
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "pruned: count"
// @Failure      403  {object}  map[string]interface{}  "Super admin required"
// @Router       /api/v1/admin/maintenance/prune-tokens [post]
// PruneTokensHandler deletes old revoked refresh tokens
// POST /api/v1/admin/maintenance/prune-tokens
func (h *MaintenanceHandlers) PruneTokensHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pruned, err := h.sessions.PruneRevokedTokens(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prune tokens"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"pruned": pruned})
	}
}

// @Summary      Purge expired reset tokens
// @Description  Delete password reset tokens that have expired or been consumed.
// @Tags         Maintenance
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "purged: count"
// @Failure      403  {object}  map[string]interface{}  "Super admin required"
// @Router       /api/v1/admin/maintenance/purge-resets [post]
// PurgeResetsHandler deletes stale password reset tokens
// POST /api/v1/admin/maintenance/purge-resets
func (h *MaintenanceHandlers) PurgeResetsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purged, err := h.resetRepo.DeleteExpired(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purge reset tokens"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"purged": purged})
	}
}
