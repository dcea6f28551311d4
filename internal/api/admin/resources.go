// resources.go implements resource management: the scoping entities that
// role assignments attach to, with a one-way lifecycle toward DELETED.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/db/models"
	"github.com/platform-iam/platform-iam/internal/db/repositories"
)

// ResourceHandlers handles resource management endpoints
type ResourceHandlers struct {
	repo *repositories.ResourceRepository
}

// NewResourceHandlers creates a new ResourceHandlers instance
func NewResourceHandlers(repo *repositories.ResourceRepository) *ResourceHandlers {
	return &ResourceHandlers{repo: repo}
}

func resourceJSON(res *models.Resource) gin.H {
	return gin.H{
		"id":           res.ID,
		"name":         res.Name,
		"display_name": res.DisplayName,
		"status":       res.Status,
		"created_at":   res.CreatedAt,
		"updated_at":   res.UpdatedAt,
	}
}

// @Summary      List resources
// @Description  Page through resources. DELETED resources are hidden unless include_deleted=true.
// @Tags         Resources
// @Security     Bearer
// @Produce      json
// @Param        page             query  int   false  "Page number (default 1)"
// @Param        per_page         query  int   false  "Page size (default 20, max 100)"
// @Param        include_deleted  query  bool  false  "Include DELETED resources"
// @Success      200  {object}  map[string]interface{}  "resources, total, page, per_page"
// @Router       /api/v1/admin/resources [get]
// ListResourcesHandler returns a page of resources
// GET /api/v1/admin/resources
func (h *ResourceHandlers) ListResourcesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, perPage, offset := parsePagination(c.Query("page"), c.Query("per_page"))
		includeDeleted := c.Query("include_deleted") == "true"

		resources, total, err := h.repo.List(c.Request.Context(), includeDeleted, perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list resources"})
			return
		}

		out := make([]gin.H, 0, len(resources))
		for _, res := range resources {
			out = append(out, resourceJSON(res))
		}

		c.JSON(http.StatusOK, gin.H{
			"resources": out,
			"total":     total,
			"page":      page,
			"per_page":  perPage,
		})
	}
}

// @Summary      Get resource
// @Tags         Resources
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Resource ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Resource not found"
// @Router       /api/v1/admin/resources/{id} [get]
// GetResourceHandler returns a single resource in any lifecycle state
// GET /api/v1/admin/resources/:id
func (h *ResourceHandlers) GetResourceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get resource"})
			return
		}
		if res == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
			return
		}

		c.JSON(http.StatusOK, resourceJSON(res))
	}
}

// CreateResourceRequest is the payload for registering a resource.
type CreateResourceRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
}

// @Summary      Create resource
// @Description  Register a new resource in ACTIVE state.
// @Tags         Resources
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateResourceRequest  true  "New resource"
// @Success      201  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}  "Resource name already exists"
// @Router       /api/v1/admin/resources [post]
// CreateResourceHandler registers a resource
// POST /api/v1/admin/resources
func (h *ResourceHandlers) CreateResourceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateResourceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		existing, err := h.repo.GetByName(c.Request.Context(), req.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create resource"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Resource name already exists"})
			return
		}

		res := &models.Resource{
			Name:        req.Name,
			DisplayName: req.DisplayName,
			Status:      models.ResourceStatusActive,
		}
		if err := h.repo.Create(c.Request.Context(), res); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create resource"})
			return
		}

		c.JSON(http.StatusCreated, resourceJSON(res))
	}
}

// UpdateResourceRequest carries the one mutable resource field.
type UpdateResourceRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

// @Summary      Update resource
// @Description  Update a resource's display name. Name and status are not editable here; status changes go through the transition endpoint.
// @Tags         Resources
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "Resource ID"
// @Param        body  body  UpdateResourceRequest  true  "Fields to update"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Resource not found"
// @Router       /api/v1/admin/resources/{id} [put]
// UpdateResourceHandler updates the display name
// PUT /api/v1/admin/resources/:id
func (h *ResourceHandlers) UpdateResourceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateResourceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		res, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update resource"})
			return
		}
		if res == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
			return
		}

		res.DisplayName = req.DisplayName
		if err := h.repo.Update(c.Request.Context(), res); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update resource"})
			return
		}

		c.JSON(http.StatusOK, resourceJSON(res))
	}
}

// TransitionResourceRequest names the target lifecycle status.
type TransitionResourceRequest struct {
	Status models.ResourceStatus `json:"status" binding:"required"`
}

// @Summary      Transition resource
// @Description  Move a resource to a new lifecycle status. ACTIVE and INACTIVE are interchangeable; DELETED is terminal. Grants on a DELETED resource stop resolving but remain on record.
// @Tags         Resources
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "Resource ID"
// @Param        body  body  TransitionResourceRequest  true  "Target status"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}  "Resource not found"
// @Failure      409  {object}  map[string]interface{}  "Illegal transition"
// @Router       /api/v1/admin/resources/{id}/transition [post]
// TransitionResourceHandler changes lifecycle status
// POST /api/v1/admin/resources/:id/transition
func (h *ResourceHandlers) TransitionResourceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransitionResourceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		id := c.Param("id")
		if err := h.repo.Transition(c.Request.Context(), id, req.Status); err != nil {
			respondError(c, err, "Failed to transition resource")
			return
		}

		res, err := h.repo.GetByID(c.Request.Context(), id)
		if err != nil || res == nil {
			c.JSON(http.StatusOK, gin.H{"message": "Resource transitioned"})
			return
		}

		c.JSON(http.StatusOK, resourceJSON(res))
	}
}
