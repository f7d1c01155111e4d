package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/middleware"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/service"
)

type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
}

func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

func (h *AnalyticsHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	days := 30
	if raw := c.Query("days"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 365 {
			days = v
		}
	}
	since := time.Now().AddDate(0, 0, -days)

	summary, err := h.analyticsService.Summary(ctx, member.WorkspaceID, since, 50)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build activity summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build activity summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *AnalyticsHandler) ListEvents(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	limit, offset := pagination(c, 50, 200)

	var eventType *model.AnalyticsEventType
	if raw := c.Query("type"); raw != "" {
		t := model.AnalyticsEventType(raw)
		eventType = &t
	}

	since, ok := timeQuery(c, "since")
	if !ok {
		return
	}
	until, ok := timeQuery(c, "until")
	if !ok {
		return
	}

	events, err := h.analyticsService.ListEvents(ctx, member.WorkspaceID, eventType, since, until, limit, offset)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list analytics events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list analytics events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// timeQuery parses an optional RFC 3339 query parameter. It writes a
// 400 and reports false when the value is present but malformed.
func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be RFC 3339"})
		return nil, false
	}
	return &t, true
}
