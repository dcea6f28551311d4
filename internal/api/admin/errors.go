// errors.go maps the service/repository error taxonomy onto HTTP responses so
// every handler reports failures the same way.
package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/auth"
)

// respondError translates a domain error into the matching HTTP status.
// Unrecognized errors become a generic 500 with the supplied fallback message
// so internal details never leak to clients.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, auth.ErrAuthentication):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, auth.ErrAuthorization):
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	case errors.Is(err, auth.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, auth.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict with current state"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// parsePagination clamps page/per_page query values to sane bounds. Missing
// or malformed values fall back to page 1 with 20 items.
func parsePagination(pageStr, perPageStr string) (page, perPage, offset int) {
	page, _ = strconv.Atoi(pageStr)
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(perPageStr)
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage, (page - 1) * perPage
}
