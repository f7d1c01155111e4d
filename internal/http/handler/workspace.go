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

type WorkspaceHandler struct {
	workspaceService *service.WorkspaceService
}

func NewWorkspaceHandler(workspaceService *service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

func (h *WorkspaceHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

func (h *WorkspaceHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	var req dto.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workspace, err := h.workspaceService.Create(ctx, user.ID, req.Name)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create workspace", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create workspace"})
		return
	}

	c.JSON(http.StatusCreated, workspace)
}

func (h *WorkspaceHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	workspaces, err := h.workspaceService.List(ctx, user.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list workspaces", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list workspaces"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspaces": workspaces})
}

func (h *WorkspaceHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	workspaceID, ok := pathID(c, "workspaceID")
	if !ok {
		return
	}

	workspace, err := h.workspaceService.Get(ctx, workspaceID, user.ID)
	if err != nil {
		h.respondError(c, err, "failed to get workspace")
		return
	}

	c.JSON(http.StatusOK, workspace)
}

func (h *WorkspaceHandler) Rename(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	workspaceID, ok := pathID(c, "workspaceID")
	if !ok {
		return
	}

	var req dto.RenameWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workspace, err := h.workspaceService.Rename(ctx, workspaceID, user.ID, req.Name)
	if err != nil {
		h.respondError(c, err, "failed to rename workspace")
		return
	}

	c.JSON(http.StatusOK, workspace)
}

func (h *WorkspaceHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	workspaceID, ok := pathID(c, "workspaceID")
	if !ok {
		return
	}

	if err := h.workspaceService.Delete(ctx, workspaceID, user.ID); err != nil {
		h.respondError(c, err, "failed to delete workspace")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *WorkspaceHandler) AddMember(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	workspaceID, ok := pathID(c, "workspaceID")
	if !ok {
		return
	}

	var req dto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.workspaceService.AddMember(ctx, workspaceID, user.ID, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no user with that email"})
			return
		}
		h.respondError(c, err, "failed to add member")
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	workspaceID, ok := pathID(c, "workspaceID")
	if !ok {
		return
	}

	members, err := h.workspaceService.ListMembers(ctx, workspaceID, user.ID)
	if err != nil {
		h.respondError(c, err, "failed to list members")
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	workspaceID, ok := pathID(c, "workspaceID")
	if !ok {
		return
	}
	memberUserID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	if err := h.workspaceService.RemoveMember(ctx, workspaceID, user.ID, memberUserID); err != nil {
		if errors.Is(err, service.ErrCannotRemoveOwner) {
			c.JSON(http.StatusConflict, gin.H{"error": "cannot remove the workspace owner"})
			return
		}
		h.respondError(c, err, "failed to remove member")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *WorkspaceHandler) respondError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "workspace not found"})
	case errors.Is(err, service.ErrNotAMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a workspace member"})
	case errors.Is(err, service.ErrOwnerOnly):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the workspace owner can do this"})
	default:
		slog.ErrorContext(c.Request.Context(), msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
