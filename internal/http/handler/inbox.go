package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/dto"
	"leadmap.app/server/internal/http/middleware"
	"leadmap.app/server/internal/service"
	"leadmap.app/server/internal/store"
)

type InboxHandler struct {
	inboxService *service.InboxService
}

func NewInboxHandler(inboxService *service.InboxService) *InboxHandler {
	return &InboxHandler{inboxService: inboxService}
}

func (h *InboxHandler) ListThreads(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	mailboxID, ok := pathID(c, "mailboxID")
	if !ok {
		return
	}
	limit, offset := pagination(c, 50, 200)

	threads, err := h.inboxService.ListThreads(ctx, member.WorkspaceID, mailboxID, limit, offset)
	if err != nil {
		h.respondError(c, err, "failed to list threads")
		return
	}

	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (h *InboxHandler) ListThreadsByLead(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	leadID, ok := pathID(c, "leadID")
	if !ok {
		return
	}

	threads, err := h.inboxService.ListThreadsByLead(ctx, member.WorkspaceID, leadID)
	if err != nil {
		h.respondError(c, err, "failed to list threads")
		return
	}

	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (h *InboxHandler) GetThread(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	threadID, ok := pathID(c, "threadID")
	if !ok {
		return
	}

	thread, messages, err := h.inboxService.GetThread(ctx, member.WorkspaceID, threadID)
	if err != nil {
		h.respondError(c, err, "failed to get thread")
		return
	}

	c.JSON(http.StatusOK, dto.ThreadDetailResponse{Thread: thread, Messages: messages})
}

func (h *InboxHandler) SetRead(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	threadID, ok := pathID(c, "threadID")
	if !ok {
		return
	}

	var req dto.SetReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.inboxService.SetRead(ctx, member.WorkspaceID, threadID, req.Unread); err != nil {
		h.respondError(c, err, "failed to update thread")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *InboxHandler) SetStarred(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	threadID, ok := pathID(c, "threadID")
	if !ok {
		return
	}

	var req dto.SetStarredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.inboxService.SetStarred(ctx, member.WorkspaceID, threadID, req.Starred); err != nil {
		h.respondError(c, err, "failed to update thread")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *InboxHandler) LinkLead(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	threadID, ok := pathID(c, "threadID")
	if !ok {
		return
	}

	var req dto.LinkLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.inboxService.LinkLead(ctx, member.WorkspaceID, threadID, req.LeadID); err != nil {
		h.respondError(c, err, "failed to link lead")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *InboxHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	threadID, ok := pathID(c, "threadID")
	if !ok {
		return
	}

	text, err := h.inboxService.Summarize(ctx, member.WorkspaceID, threadID)
	if err != nil {
		if errors.Is(err, service.ErrSummaryUnavailable) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "summaries are not enabled"})
			return
		}
		h.respondError(c, err, "failed to summarize thread")
		return
	}

	c.JSON(http.StatusOK, dto.SummaryResponse{Summary: text})
}

func (h *InboxHandler) respondError(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	slog.ErrorContext(c.Request.Context(), msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
