// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RequestID → RateLimit → Auth → RBAC → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth populates the principal identity and permission snapshot; RBAC reads
// from that context. Audit logging runs after RBAC so only successfully
// authorized mutations are recorded as successful actions.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/config"
	"github.com/platform-iam/platform-iam/internal/db/models"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
)

// Context keys set by AuthMiddleware.
const (
	CtxPrincipalID = "principal_id"
	CtxClaims      = "claims"
	CtxPermissions = "permissions"
	CtxSuperAdmin  = "is_super_admin"
	CtxAuthMethod  = "auth_method"
	CtxAPIKey      = "api_key"
)

// AuthMiddleware validates authentication (JWT access token or API key).
func AuthMiddleware(cfg *config.Config, apiKeyRepo *repositories.APIKeyRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		// JWT validation is attempted first because it is entirely stateless —
		// a cryptographic check against the JWT secret with no database
		// round-trip. API key validation always requires a DB query (prefix
		// lookup + bcrypt comparison), so JWT is the lower-latency path.
		if claims, err := auth.ValidateAccessToken(token); err == nil {
			c.Set(CtxClaims, claims)
			c.Set(CtxPrincipalID, claims.PrincipalID)
			c.Set(CtxPermissions, claims.Permissions)
			c.Set(CtxSuperAdmin, claims.SuperAdmin)
			c.Set(CtxAuthMethod, "jwt")
			c.Next()
			return
		}

		if !cfg.Auth.APIKeys.Enabled {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		// Try API key.
		// We never store the raw key — only its bcrypt hash. The 10-character
		// prefix is stored plaintext alongside the hash so we can do a fast
		// indexed DB query to narrow the candidate set, then run the expensive
		// bcrypt comparison only on those few rows. Without the prefix, every
		// request would require scanning the entire api_keys table and running
		// bcrypt on each row.
		keyPrefix := token
		if len(token) > auth.DisplayPrefixLength {
			keyPrefix = token[:auth.DisplayPrefixLength]
		}
		apiKey, err := authenticateAPIKey(c.Request.Context(), token, keyPrefix, apiKeyRepo)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Authentication failed",
			})
			return
		}

		if apiKey == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		// Update last-used timestamp asynchronously. Fire-and-forget: last-used
		// tracking is best-effort, and a synchronous write would add a DB write
		// to every authenticated request. The 5-second timeout prevents leaked
		// goroutines if the DB is temporarily unreachable.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiKeyRepo.TouchLastUsed(ctx, apiKey.ID)
		}()

		c.Set(CtxAPIKey, apiKey)
		c.Set(CtxPermissions, apiKey.Scopes)
		c.Set(CtxSuperAdmin, false)
		c.Set(CtxAuthMethod, "api_key")
		c.Next()
	}
}

// authenticateAPIKey attempts to authenticate an API key by prefix lookup and
// bcrypt validation. Revoked keys are filtered out by the candidate query.
func authenticateAPIKey(ctx context.Context, providedKey, keyPrefix string, apiKeyRepo *repositories.APIKeyRepository) (*models.APIKey, error) {
	keys, err := apiKeyRepo.ListCandidatesByPrefix(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		if auth.ValidateAPIKey(providedKey, key.KeyHash) {
			return key, nil
		}
	}

	return nil, nil
}
