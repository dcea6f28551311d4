// Package middleware (rbac.go) implements verb-based authorization middleware.
//
// Routes whose scope is fixed at registration time use the snapshot-based
// guards (RequireVerb, RequireAnyVerb), which check the permission set placed
// in context by AuthMiddleware — the set baked into the access token at issue
// time. Routes whose scope depends on a path parameter use RequireResourceVerb,
// which calls the resolver so that resource-scoped grants are counted.

package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/authz"
	"github.com/platform-iam/platform-iam/internal/telemetry"
)

// contextPermissions pulls the permission snapshot out of the Gin context.
func contextPermissions(c *gin.Context) ([]string, bool) {
	val, exists := c.Get(CtxPermissions)
	if !exists {
		return nil, false
	}
	perms, ok := val.([]string)
	return perms, ok
}

// snapshotAllows applies the wildcard rule to a snapshot permission set.
func snapshotAllows(perms []string, verb authz.Verb) bool {
	for _, p := range perms {
		if p == string(authz.VerbWildcard) || p == string(verb) {
			return true
		}
	}
	return false
}

// RequireVerb checks that the authenticated caller's permission snapshot
// contains the verb (or the wildcard).
func RequireVerb(verb authz.Verb) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, ok := contextPermissions(c)
		if !ok {
			telemetry.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		if !snapshotAllows(perms, verb) {
			telemetry.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Missing required permission",
				"details": "Required permission: " + string(verb),
			})
			return
		}

		telemetry.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
		c.Next()
	}
}

// RequireAnyVerb checks that the snapshot contains at least one of the verbs.
func RequireAnyVerb(verbs ...authz.Verb) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, ok := contextPermissions(c)
		if !ok {
			telemetry.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		for _, verb := range verbs {
			if snapshotAllows(perms, verb) {
				telemetry.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
				c.Next()
				return
			}
		}

		telemetry.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "Missing required permission",
		})
	}
}

// RequireResourceVerb authorizes the verb against the resource named by the
// route parameter, consulting the resolver so resource-scoped grants count.
// The resolver sees current assignments, not the token snapshot, so a grant
// made after login takes effect immediately on this path.
func RequireResourceVerb(verb authz.Verb, resolver *authz.Resolver, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principalVal, exists := c.Get(CtxPrincipalID)
		if !exists {
			// API key callers carry no principal; their scope snapshot is all
			// they have.
			perms, ok := contextPermissions(c)
			if ok && snapshotAllows(perms, verb) {
				telemetry.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
				c.Next()
				return
			}
			telemetry.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		principalID, ok := principalVal.(string)
		if !ok {
			telemetry.AuthzDecisionsTotal.WithLabelValues("error").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Invalid principal context",
			})
			return
		}

		resourceID := c.Param(param)
		var scope *string
		if resourceID != "" {
			scope = &resourceID
		}

		decision, err := resolver.Resolve(c.Request.Context(), principalID, scope, []authz.Verb{verb})
		if err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				telemetry.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "Insufficient permissions",
				})
				return
			}
			telemetry.AuthzDecisionsTotal.WithLabelValues("error").Inc()
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Authorization check failed",
			})
			return
		}

		if !decision.Allowed {
			telemetry.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Missing required permission",
				"details": "Required permission: " + string(verb),
			})
			return
		}

		telemetry.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
		c.Next()
	}
}

// RequireSuperAdmin restricts a route to super-admin principals.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(CtxSuperAdmin) {
			telemetry.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Super admin access required",
			})
			return
		}
		telemetry.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
		c.Next()
	}
}
