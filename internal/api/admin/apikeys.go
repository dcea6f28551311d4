// apikeys.go implements API key administration. The plaintext key appears
// exactly once, in the creation response; afterwards only the display
// prefix is ever returned.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/authz"
	"github.com/platform-iam/platform-iam/internal/config"
	"github.com/platform-iam/platform-iam/internal/db/models"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
)

// APIKeyHandlers handles API key management endpoints
type APIKeyHandlers struct {
	cfg  *config.Config
	repo *repositories.APIKeyRepository
}

// NewAPIKeyHandlers creates a new APIKeyHandlers instance
func NewAPIKeyHandlers(cfg *config.Config, repo *repositories.APIKeyRepository) *APIKeyHandlers {
	return &APIKeyHandlers{cfg: cfg, repo: repo}
}

func apiKeyJSON(k *models.APIKey) gin.H {
	return gin.H{
		"id":           k.ID,
		"owner":        k.Owner,
		"description":  k.Description,
		"key_prefix":   k.KeyPrefix,
		"scopes":       k.Scopes,
		"revoked":      k.Revoked,
		"last_used_at": k.LastUsedAt,
		"created_at":   k.CreatedAt,
	}
}

// CreateAPIKeyRequest is the payload for minting a service key.
type CreateAPIKeyRequest struct {
	Owner       string   `json:"owner" binding:"required"`
	Description *string  `json:"description"`
	Scopes      []string `json:"scopes" binding:"required,min=1"`
}

// @Summary      Create API key
// @Description  Mint a service key. The full key is returned once in this response and cannot be recovered later. Scopes are permission verbs; unknown verbs are rejected.
// @Tags         API Keys
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateAPIKeyRequest  true  "New key"
// @Success      201  {object}  map[string]interface{}  "key (plaintext, once), api_key"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or unknown scope verb"
// @Router       /api/v1/admin/apikeys [post]
// CreateAPIKeyHandler mints a new API key
// POST /api/v1/admin/apikeys
func (h *APIKeyHandlers) CreateAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAPIKeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		if _, err := authz.ParseVerbs(req.Scopes); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		prefix := h.cfg.Auth.APIKeys.Prefix
		if prefix == "" {
			prefix = "iam"
		}

		key, hash, displayPrefix, err := auth.GenerateAPIKey(prefix)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate key"})
			return
		}

		apiKey := &models.APIKey{
			Owner:       req.Owner,
			Description: req.Description,
			KeyHash:     hash,
			KeyPrefix:   displayPrefix,
			Scopes:      req.Scopes,
		}
		if err := h.repo.Create(c.Request.Context(), apiKey); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create key"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"key":     key,
			"api_key": apiKeyJSON(apiKey),
		})
	}
}

// @Summary      List API keys
// @Description  Return all keys, revoked included, newest first. Hashes and full keys are never returned.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "api_keys"
// @Router       /api/v1/admin/apikeys [get]
// ListAPIKeysHandler lists all API keys
// GET /api/v1/admin/apikeys
func (h *APIKeyHandlers) ListAPIKeysHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys, err := h.repo.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list keys"})
			return
		}

		out := make([]gin.H, 0, len(keys))
		for _, k := range keys {
			out = append(out, apiKeyJSON(k))
		}

		c.JSON(http.StatusOK, gin.H{"api_keys": out})
	}
}

// @Summary      Get API key
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "API key ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Key not found"
// @Router       /api/v1/admin/apikeys/{id} [get]
// GetAPIKeyHandler returns a single API key record
// GET /api/v1/admin/apikeys/:id
func (h *APIKeyHandlers) GetAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get key"})
			return
		}
		if key == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Key not found"})
			return
		}

		c.JSON(http.StatusOK, apiKeyJSON(key))
	}
}

// @Summary      Revoke API key
// @Description  Permanently revoke a key. Revocation takes effect on the next authentication attempt. Revoking twice is harmless.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "API key ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Key not found"
// @Router       /api/v1/admin/apikeys/{id} [delete]
// RevokeAPIKeyHandler revokes an API key
// DELETE /api/v1/admin/apikeys/:id
func (h *APIKeyHandlers) RevokeAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		key, err := h.repo.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke key"})
			return
		}
		if key == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Key not found"})
			return
		}

		if err := h.repo.Revoke(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke key"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
	}
}
