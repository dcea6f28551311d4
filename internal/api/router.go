// Package api wires together all HTTP routes for the identity platform.
//
// Route grouping philosophy:
//   - /api/v1/auth/* credential endpoints (login, refresh, logout, password
//     reset) are public. They are the entry point into the system, so they
//     carry the stricter auth rate limit budget instead of a token check.
//   - Everything else under /api/v1/ requires authentication (JWT or API key)
//     and a verb guard. Directory reads accept either the read or audit verb
//     so auditors can resolve names without being granted write roles.
//     Destructive maintenance and API key management are super-admin only.
//
// Resource transitions are guarded per resource: the caller needs the update
// verb within the scope of the specific resource named in the URL, not just a
// global grant somewhere.
package api

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/platform-iam/platform-iam/internal/api/admin"
	"github.com/platform-iam/platform-iam/internal/audit"
	"github.com/platform-iam/platform-iam/internal/authz"
	"github.com/platform-iam/platform-iam/internal/config"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
	"github.com/platform-iam/platform-iam/internal/jobs"
	"github.com/platform-iam/platform-iam/internal/middleware"
	"github.com/platform-iam/platform-iam/internal/notify"
	"github.com/platform-iam/platform-iam/internal/safego"
	"github.com/platform-iam/platform-iam/internal/services"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	maintenanceJob     *jobs.TokenMaintenanceJob
	auditShipper       audit.Shipper
	rateLimiters       []*middleware.RateLimiter
	authLimiterCleanup func()
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.maintenanceJob != nil {
		bg.maintenanceJob.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.authLimiterCleanup != nil {
		bg.authLimiterCleanup()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Error("failed to close audit shipper", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	principalRepo := repositories.NewPrincipalRepository(db)
	roleRepo := repositories.NewRoleRepository(db)
	resourceRepo := repositories.NewResourceRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)

	// Wrap *sql.DB with sqlx for the assignment and refresh token repositories
	sqlxDB := sqlx.NewDb(db, "postgres")
	assignmentRepo := repositories.NewAssignmentRepository(sqlxDB)
	refreshRepo := repositories.NewRefreshTokenRepository(sqlxDB)

	// Authorization resolver over the combined principal/grant store
	store := repositories.NewAuthzStore(principalRepo, assignmentRepo)
	resolver := authz.NewResolver(store, authz.Config{
		IncludeDeletedResources: cfg.Auth.Resolver.IncludeDeletedResources,
	})

	mailer := notify.NewMailer(&cfg.Notifications)

	sessions := services.NewSessionService(
		principalRepo, refreshRepo, resetRepo, auditRepo,
		resolver, mailer, &cfg.Auth, cfg.Server.BaseURL,
	)

	// Optionally start the token maintenance janitor. Disabled by default;
	// token validity never depends on it (expiry is enforced at lookup time),
	// it only keeps the revoked-token and reset-token tables from growing on
	// deployments where nobody triggers the admin maintenance operations.
	var maintenanceJob *jobs.TokenMaintenanceJob
	if cfg.Auth.Tokens.MaintenanceInterval > 0 {
		maintenanceJob = jobs.NewTokenMaintenanceJob(sessions, resetRepo, cfg.Auth.Tokens.MaintenanceInterval)
		job := maintenanceJob
		safego.Go(func() { job.Start(context.Background()) })
	}

	// Build the audit shipper chain from config
	var shipper audit.Shipper
	if cfg.Audit.Enabled && len(cfg.Audit.Shippers) > 0 {
		ms, err := audit.NewMultiShipper(shipperConfigs(cfg.Audit.Shippers))
		if err != nil {
			log.Fatalf("Failed to initialize audit shippers: %v", err)
		}
		shipper = ms
		log.Printf("Audit shipping enabled (%d shipper(s) configured)", len(cfg.Audit.Shippers))
	}

	// Initialize handlers
	authHandlers := admin.NewAuthHandlers(sessions, principalRepo, resolver)
	principalHandlers := admin.NewPrincipalHandlers(cfg, principalRepo, sessions)
	roleHandlers := admin.NewRoleHandlers(roleRepo)
	resourceHandlers := admin.NewResourceHandlers(resourceRepo)
	assignmentHandlers := admin.NewAssignmentHandlers(assignmentRepo, principalRepo, roleRepo, resourceRepo, resolver)
	apiKeyHandlers := admin.NewAPIKeyHandlers(cfg, apiKeyRepo)
	auditHandlers := admin.NewAuditHandlers(auditRepo)
	maintenanceHandlers := admin.NewMaintenanceHandlers(sessions, resetRepo)

	// Initialize rate limiters
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	authLimitHandlers, authLimiterCleanup, err := middleware.AuthRateLimitMiddleware(&cfg.Security.RateLimiting)
	if err != nil {
		log.Fatalf("Failed to initialize auth rate limiter: %v", err)
	}

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint
	router.GET("/ready", readinessHandler(db))

	// API version
	router.GET("/version", versionHandler())

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints (no auth required, but rate limited)
		authGroup := apiV1.Group("/auth")
		if cfg.Security.RateLimiting.Enabled {
			authGroup.Use(authLimitHandlers...)
		}
		{
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.POST("/refresh", authHandlers.RefreshHandler())
			authGroup.POST("/logout", authHandlers.LogoutHandler())
			authGroup.POST("/password-reset/request", authHandlers.RequestPasswordResetHandler())
			authGroup.POST("/password-reset/complete", authHandlers.CompletePasswordResetHandler())
		}

		// Authenticated endpoints
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(middleware.AuthMiddleware(cfg, apiKeyRepo))
		if cfg.Security.RateLimiting.Enabled {
			authenticatedGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		}
		if cfg.Audit.Enabled {
			authenticatedGroup.Use(middleware.AuditMiddlewareWithShipper(auditRepo, shipper, &cfg.Audit))
		}
		{
			// Session self-service (any authenticated principal)
			authenticatedGroup.GET("/auth/me", authHandlers.MeHandler())
			authenticatedGroup.POST("/auth/logout-all", authHandlers.LogoutAllHandler())

			// Principal management
			principalsGroup := authenticatedGroup.Group("/principals")
			{
				principalsGroup.GET("", middleware.RequireAnyVerb(authz.VerbRead, authz.VerbAudit), principalHandlers.ListPrincipalsHandler())
				principalsGroup.GET("/:id", middleware.RequireAnyVerb(authz.VerbRead, authz.VerbAudit), principalHandlers.GetPrincipalHandler())
				principalsGroup.POST("", middleware.RequireVerb(authz.VerbCreate), principalHandlers.CreatePrincipalHandler())
				principalsGroup.PUT("/:id", middleware.RequireVerb(authz.VerbUpdate), principalHandlers.UpdatePrincipalHandler())
				principalsGroup.POST("/:id/activate", middleware.RequireVerb(authz.VerbUpdate), principalHandlers.ActivatePrincipalHandler())
				principalsGroup.POST("/:id/deactivate", middleware.RequireVerb(authz.VerbUpdate), principalHandlers.DeactivatePrincipalHandler())
				principalsGroup.DELETE("/:id", middleware.RequireVerb(authz.VerbDelete), principalHandlers.DeletePrincipalHandler())

				// Credential replacement revokes every live session, so it sits
				// behind the super-admin gate rather than the update verb.
				principalsGroup.PUT("/:id/password", middleware.RequireSuperAdmin(), principalHandlers.ReplacePasswordHandler())

				// Grant views scoped to a principal
				principalsGroup.GET("/:id/grants", middleware.RequireAnyVerb(authz.VerbRead, authz.VerbAudit, authz.VerbAssign), assignmentHandlers.ListPrincipalGrantsHandler())
				principalsGroup.GET("/:id/permissions", middleware.RequireAnyVerb(authz.VerbRead, authz.VerbAudit, authz.VerbAssign), assignmentHandlers.EffectivePermissionsHandler())
			}

			// Role catalog management
			rolesGroup := authenticatedGroup.Group("/roles")
			{
				rolesGroup.GET("", middleware.RequireAnyVerb(authz.VerbRead, authz.VerbAudit), roleHandlers.ListRolesHandler())
				rolesGroup.GET("/:id", middleware.RequireAnyVerb(authz.VerbRead, authz.VerbAudit), roleHandlers.GetRoleHandler())
				rolesGroup.POST("", middleware.RequireVerb(authz.VerbCreate), roleHandlers.CreateRoleHandler())
				rolesGroup.PUT("/:id", middleware.RequireVerb(authz.VerbUpdate), roleHandlers.UpdateRoleHandler())
				rolesGroup.DELETE("/:id", middleware.RequireVerb(authz.VerbDelete), roleHandlers.DeleteRoleHandler())
			}

			// Resource catalog management
			resourcesGroup := authenticatedGroup.Group("/resources")
			{
				resourcesGroup.GET("", middleware.RequireAnyVerb(authz.VerbRead, authz.VerbAudit), resourceHandlers.ListResourcesHandler())
				resourcesGroup.GET("/:id", middleware.RequireAnyVerb(authz.VerbRead, authz.VerbAudit), resourceHandlers.GetResourceHandler())
				resourcesGroup.POST("", middleware.RequireVerb(authz.VerbCreate), resourceHandlers.CreateResourceHandler())

				// Update and lifecycle transitions honor resource-scoped grants:
				// an update grant on this specific resource suffices.
				resourcesGroup.PUT("/:id", middleware.RequireResourceVerb(authz.VerbUpdate, resolver, "id"), resourceHandlers.UpdateResourceHandler())
				resourcesGroup.POST("/:id/transition", middleware.RequireResourceVerb(authz.VerbUpdate, resolver, "id"), resourceHandlers.TransitionResourceHandler())

				resourcesGroup.GET("/:id/grants", middleware.RequireAnyVerb(authz.VerbRead, authz.VerbAudit, authz.VerbAssign), assignmentHandlers.ListResourceGrantsHandler())
			}

			// Grant management
			grantsGroup := authenticatedGroup.Group("/grants")
			grantsGroup.Use(middleware.RequireVerb(authz.VerbAssign))
			{
				grantsGroup.POST("", assignmentHandlers.GrantHandler())
				grantsGroup.DELETE("/:id", assignmentHandlers.RevokeHandler())
			}

			// API key management (super-admin only; keys can carry any scope,
			// so minting one is equivalent to granting that scope)
			apiKeysGroup := authenticatedGroup.Group("/apikeys")
			apiKeysGroup.Use(middleware.RequireSuperAdmin())
			{
				apiKeysGroup.GET("", apiKeyHandlers.ListAPIKeysHandler())
				apiKeysGroup.POST("", apiKeyHandlers.CreateAPIKeyHandler())
				apiKeysGroup.GET("/:id", apiKeyHandlers.GetAPIKeyHandler())
				apiKeysGroup.DELETE("/:id", apiKeyHandlers.RevokeAPIKeyHandler())
			}

			// Audit log access
			auditGroup := authenticatedGroup.Group("/audit-logs")
			auditGroup.Use(middleware.RequireVerb(authz.VerbAudit))
			{
				auditGroup.GET("", auditHandlers.ListAuditLogsHandler())
				auditGroup.GET("/:id", auditHandlers.GetAuditLogHandler())
			}

			// Maintenance operations (super-admin only)
			maintenanceGroup := authenticatedGroup.Group("/maintenance")
			maintenanceGroup.Use(middleware.RequireSuperAdmin())
			{
				maintenanceGroup.POST("/prune-tokens", maintenanceHandlers.PruneTokensHandler())
				maintenanceGroup.POST("/purge-resets", maintenanceHandlers.PurgeResetsHandler())
			}
		}
	}

	bg := &BackgroundServices{
		maintenanceJob:     maintenanceJob,
		auditShipper:       shipper,
		rateLimiters:       []*middleware.RateLimiter{generalRateLimiter},
		authLimiterCleanup: authLimiterCleanup,
	}

	return router, bg
}

// shipperConfigs converts config-layer shipper settings into the audit
// package's own config types. The two are kept separate so the audit package
// does not import viper-tagged structs.
func shipperConfigs(configs []config.AuditShipperConfig) []audit.ShipperConfig {
	out := make([]audit.ShipperConfig, 0, len(configs))
	for _, c := range configs {
		sc := audit.ShipperConfig{
			Enabled: c.Enabled,
			Type:    c.Type,
		}
		if c.Syslog != nil {
			sc.Syslog = &audit.SyslogConfig{
				Network:  c.Syslog.Network,
				Address:  c.Syslog.Address,
				Tag:      c.Syslog.Tag,
				Facility: c.Syslog.Facility,
			}
		}
		if c.Webhook != nil {
			sc.Webhook = &audit.WebhookConfig{
				URL:           c.Webhook.URL,
				Headers:       c.Webhook.Headers,
				Timeout:       time.Duration(c.Webhook.TimeoutSecs) * time.Second,
				BatchSize:     c.Webhook.BatchSize,
				FlushInterval: time.Duration(c.Webhook.FlushInterval) * time.Second,
			}
		}
		if c.File != nil {
			sc.File = &audit.FileConfig{
				Path:       c.File.Path,
				MaxSizeMB:  c.File.MaxSizeMB,
				MaxBackups: c.File.MaxBackups,
			}
		}
		out = append(out, sc)
	}
	return out
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service. The database
// is the only hard dependency, so readiness and liveness differ mainly in the
// response shape consumed by the orchestrator.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logRequest(c, latency, path, query)
	}
}

// logRequest emits one slog record per request; the global handler set up in
// telemetry.SetupLogger decides between JSON and text output.
func logRequest(c *gin.Context, latency time.Duration, path, query string) {
	requestID := c.GetString(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", requestID),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
