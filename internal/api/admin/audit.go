// audit.go implements the read-only audit trail endpoints.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/db/models"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
)

// AuditHandlers handles audit log endpoints
type AuditHandlers struct {
	repo *repositories.AuditRepository
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(repo *repositories.AuditRepository) *AuditHandlers {
	return &AuditHandlers{repo: repo}
}

func auditLogJSON(l *models.AuditLog) gin.H {
	return gin.H{
		"id":           l.ID,
		"principal_id": l.PrincipalID,
		"resource_id":  l.ResourceID,
		"action":       l.Action,
		"target_type":  l.TargetType,
		"target_id":    l.TargetID,
		"metadata":     l.Metadata,
		"ip_address":   l.IPAddress,
		"created_at":   l.CreatedAt,
	}
}

// @Summary      List audit logs
// @Description  Page through the audit trail, newest first. All filters are optional and combine with AND. Dates are RFC 3339.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        page          query  int     false  "Page number (default 1)"
// @Param        per_page      query  int     false  "Page size (default 20, max 100)"
// @Param        principal_id  query  string  false  "Filter by acting principal"
// @Param        resource_id   query  string  false  "Filter by resource scope"
// @Param        action        query  string  false  "Filter by action (e.g. auth.login)"
// @Param        target_type   query  string  false  "Filter by target type"
// @Param        start_date    query  string  false  "Entries at or after this time"
// @Param        end_date      query  string  false  "Entries at or before this time"
// @Success      200  {object}  map[string]interface{}  "audit_logs, total, page, per_page"
// @Failure      400  {object}  map[string]interface{}  "Malformed date filter"
// @Router       /api/v1/admin/audit [get]
// ListAuditLogsHandler returns a filtered page of audit entries
// GET /api/v1/admin/audit
func (h *AuditHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage, offset := parsePagination(c.Query("page"), c.Query("per_page"))

		var filters repositories.AuditFilters
		if v := c.Query("principal_id"); v != "" {
			filters.PrincipalID = &v
		}
		if v := c.Query("resource_id"); v != "" {
			filters.ResourceID = &v
		}
		if v := c.Query("action"); v != "" {
			filters.Action = &v
		}
		if v := c.Query("target_type"); v != "" {
			filters.TargetType = &v
		}
		if v := c.Query("start_date"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date, want RFC 3339"})
				return
			}
			filters.StartDate = &t
		}
		if v := c.Query("end_date"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date, want RFC 3339"})
				return
			}
			filters.EndDate = &t
		}

		logs, total, err := h.repo.ListAuditLogs(c.Request.Context(), filters, perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
			return
		}

		out := make([]gin.H, 0, len(logs))
		for _, l := range logs {
			out = append(out, auditLogJSON(l))
		}

		c.JSON(http.StatusOK, gin.H{
			"audit_logs": out,
			"total":      total,
			"page":       page,
			"per_page":   perPage,
		})
	}
}

// @Summary      Get audit log
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Audit log ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Entry not found"
// @Router       /api/v1/admin/audit/{id} [get]
// GetAuditLogHandler returns a single audit entry
// GET /api/v1/admin/audit/:id
func (h *AuditHandlers) GetAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		log, err := h.repo.GetAuditLog(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get audit log"})
			return
		}
		if log == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit log not found"})
			return
		}

		c.JSON(http.StatusOK, auditLogJSON(log))
	}
}
