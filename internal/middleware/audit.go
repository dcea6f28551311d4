// audit.go provides Gin middleware that records authenticated write operations to the audit
// log, with optional shipping to external audit destinations. The session service records
// its own precise auth events (login, rotation, reuse detection); this middleware covers
// the administrative surface generically.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/audit"
	"github.com/platform-iam/platform-iam/internal/config"
	"github.com/platform-iam/platform-iam/internal/db/models"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
)

// AuditMiddleware logs authenticated actions to the database only
func AuditMiddleware(auditRepo *repositories.AuditRepository) gin.HandlerFunc {
	return AuditMiddlewareWithShipper(auditRepo, nil, nil)
}

// AuditMiddlewareWithShipper logs authenticated actions and ships to external destinations
func AuditMiddlewareWithShipper(auditRepo *repositories.AuditRepository, shipper audit.Shipper, auditCfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request first
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		logReadOps := auditCfg != nil && auditCfg.LogReadOperations
		logFailedReqs := auditCfg != nil && auditCfg.LogFailedRequests

		isReadOp := c.Request.Method == "GET"
		isFailed := c.Writer.Status() >= 400

		// Default behavior: only log successful write operations
		if auditCfg == nil {
			if isReadOp || isFailed {
				return
			}
		} else {
			if isReadOp && !logReadOps {
				return
			}
			if isFailed && !logFailedReqs {
				return
			}
		}

		principalVal, _ := c.Get(CtxPrincipalID)
		authMethodVal, _ := c.Get(CtxAuthMethod)

		ipAddress := c.ClientIP()
		targetType := targetTypeForPath(c.Request.URL.Path)
		action := actionForRequest(c.Request.Method, c.Request.URL.Path, targetType)

		auditLog := &models.AuditLog{
			Action:    action,
			IPAddress: &ipAddress,
			CreatedAt: time.Now(),
		}

		var principalID string
		if pid, ok := principalVal.(string); ok && pid != "" {
			principalID = pid
			auditLog.PrincipalID = &principalID
		}

		if targetType != "" {
			auditLog.TargetType = &targetType
		}

		var targetID string
		if id := c.Param("id"); id != "" {
			targetID = id
			auditLog.TargetID = &targetID
			if targetType == "resource" {
				auditLog.ResourceID = &targetID
			}
		}

		metadata := map[string]interface{}{
			"status_code": c.Writer.Status(),
			"path":        c.Request.URL.Path,
		}
		if authMethodVal != nil {
			metadata["auth_method"] = authMethodVal
		}
		auditLog.Metadata = metadata

		statusCode := c.Writer.Status()

		// Async log creation (non-blocking)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if auditRepo != nil {
				if err := auditRepo.CreateAuditLog(ctx, auditLog); err != nil {
					slog.Error("failed to create audit log in database", "error", err)
				}
			}

			if shipper != nil {
				authMethodStr := ""
				if am, ok := authMethodVal.(string); ok {
					authMethodStr = am
				}

				entry := &audit.LogEntry{
					Timestamp:   auditLog.CreatedAt,
					Action:      auditLog.Action,
					PrincipalID: principalID,
					TargetType:  targetType,
					TargetID:    targetID,
					IPAddress:   ipAddress,
					AuthMethod:  authMethodStr,
					StatusCode:  statusCode,
					Metadata:    metadata,
				}
				if auditLog.ResourceID != nil {
					entry.ResourceID = *auditLog.ResourceID
				}

				if err := shipper.Ship(ctx, entry); err != nil {
					slog.Error("failed to ship audit log", "error", err)
				}
			}
		}()
	}
}

// targetTypeForPath maps an API path to the audit target type it manipulates.
func targetTypeForPath(path string) string {
	switch {
	case strings.Contains(path, "/principals"):
		return "principal"
	case strings.Contains(path, "/roles"):
		return "role"
	case strings.Contains(path, "/resources"):
		return "resource"
	case strings.Contains(path, "/assignments"):
		return "assignment"
	case strings.Contains(path, "/apikeys"):
		return "api_key"
	default:
		return ""
	}
}

// actionForRequest derives a dotted action name for known target types and
// falls back to "METHOD /path" for everything else.
func actionForRequest(method, path, targetType string) string {
	if targetType == "" {
		return fmt.Sprintf("%s %s", method, path)
	}

	switch method {
	case "POST":
		return targetType + ".created"
	case "PUT", "PATCH":
		return targetType + ".updated"
	case "DELETE":
		return targetType + ".deleted"
	default:
		return targetType + ".read"
	}
}
