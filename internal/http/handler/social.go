package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/dto"
	"leadmap.app/server/internal/http/middleware"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/service"
	"leadmap.app/server/internal/store"
)

type SocialHandler struct {
	socialService *service.SocialService
}

func NewSocialHandler(socialService *service.SocialService) *SocialHandler {
	return &SocialHandler{socialService: socialService}
}

func (h *SocialHandler) ConnectAccount(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	member := middleware.CurrentMember(c)

	var req dto.ConnectSocialAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.socialService.ConnectAccount(ctx, member.WorkspaceID, user.ID, model.SocialProvider(req.Provider), req.Handle, req.AccessToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect social account", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to connect social account"})
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *SocialHandler) ListAccounts(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	accounts, err := h.socialService.ListAccounts(ctx, member.WorkspaceID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list social accounts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list social accounts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *SocialHandler) DisconnectAccount(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	accountID, ok := pathID(c, "accountID")
	if !ok {
		return
	}

	if err := h.socialService.DisconnectAccount(ctx, member.WorkspaceID, accountID); err != nil {
		h.respondError(c, err, "failed to disconnect account")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SocialHandler) CreatePost(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	var req dto.SocialPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.socialService.CreatePost(ctx, member.WorkspaceID, req.Body, req.MediaURLs)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create post", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create post"})
		return
	}

	c.JSON(http.StatusCreated, post)
}

func (h *SocialHandler) GetPost(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	postID, ok := pathID(c, "postID")
	if !ok {
		return
	}

	post, err := h.socialService.GetPost(ctx, member.WorkspaceID, postID)
	if err != nil {
		h.respondError(c, err, "failed to get post")
		return
	}

	c.JSON(http.StatusOK, post)
}

func (h *SocialHandler) UpdatePost(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	postID, ok := pathID(c, "postID")
	if !ok {
		return
	}

	var req dto.SocialPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.socialService.UpdatePost(ctx, member.WorkspaceID, postID, req.Body, req.MediaURLs)
	if err != nil {
		h.respondError(c, err, "failed to update post")
		return
	}

	c.JSON(http.StatusOK, post)
}

func (h *SocialHandler) DeletePost(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	postID, ok := pathID(c, "postID")
	if !ok {
		return
	}

	if err := h.socialService.DeletePost(ctx, member.WorkspaceID, postID); err != nil {
		h.respondError(c, err, "failed to delete post")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SocialHandler) Schedule(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	var req dto.SchedulePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule, err := h.socialService.Schedule(ctx, member.WorkspaceID, req.PostID, req.AccountID, req.ScheduledAt)
	if err != nil {
		if errors.Is(err, service.ErrScheduleInPast) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at must be in the future"})
			return
		}
		h.respondError(c, err, "failed to schedule post")
		return
	}

	c.JSON(http.StatusCreated, schedule)
}

func (h *SocialHandler) ListSchedules(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	limit, offset := pagination(c, 50, 200)

	schedules, err := h.socialService.ListSchedules(ctx, member.WorkspaceID, limit, offset)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list schedules", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list schedules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (h *SocialHandler) DeleteSchedule(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	scheduleID, ok := pathID(c, "scheduleID")
	if !ok {
		return
	}

	if err := h.socialService.DeleteSchedule(ctx, member.WorkspaceID, scheduleID); err != nil {
		h.respondError(c, err, "failed to delete schedule")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SocialHandler) respondError(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	slog.ErrorContext(c.Request.Context(), msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
