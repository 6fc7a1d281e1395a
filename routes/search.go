package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"slide-search-platform/internal/store"
	"slide-search-platform/models"
	"slide-search-platform/services"
	"slide-search-platform/utils"
)

// SetupSearchRoutes registers the hybrid search endpoint.
func SetupSearchRoutes(router *gin.Engine, searchService *services.SearchService) {
	router.POST("/api/search", HandleSearch(searchService))
}

// HandleSearch runs hybrid retrieval for a query with optional exact-match
// payload filters.
func HandleSearch(searchService *services.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search request", err.Error())
			return
		}

		results, err := searchService.Search(c.Request.Context(), req.Query, req.Filters, req.Limit)
		if err != nil {
			if errors.Is(err, store.ErrBackendUnavailable) {
				utils.RespondWithUnavailable(c, "Search backend unavailable")
				return
			}
			utils.RespondWithInternalError(c, "Search failed", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query":   req.Query,
			"results": results,
			"count":   len(results),
		})
	}
}
