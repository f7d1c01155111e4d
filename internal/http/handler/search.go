package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/middleware"
	"leadmap.app/server/internal/service"
)

type SearchHandler struct {
	searchService *service.SearchService
}

func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

func (h *SearchHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	if !h.searchService.Enabled() {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "search is not enabled"})
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	switch c.DefaultQuery("type", "leads") {
	case "leads":
		hits, err := h.searchService.SearchLeads(ctx, member.WorkspaceID, query, limit)
		if err != nil {
			slog.ErrorContext(ctx, "lead search failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "search failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"leads": hits})
	case "threads":
		hits, err := h.searchService.SearchThreads(ctx, member.WorkspaceID, query, limit)
		if err != nil {
			slog.ErrorContext(ctx, "thread search failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "search failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"threads": hits})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be leads or threads"})
	}
}
