package handler

import (
	"context"
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

type MailboxHandler struct {
	mailboxService *service.MailboxService
}

func NewMailboxHandler(mailboxService *service.MailboxService) *MailboxHandler {
	return &MailboxHandler{mailboxService: mailboxService}
}

// AuthURL returns the provider consent URL the client redirects the
// user to. The client passes its own CSRF state and verifies it on
// return before posting the authorization code back.
func (h *MailboxHandler) AuthURL(c *gin.Context) {
	state := c.Query("state")
	if state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
		return
	}

	switch c.Query("provider") {
	case "gmail":
		c.JSON(http.StatusOK, dto.AuthURLResponse{URL: h.mailboxService.GmailAuthURL(state)})
	case "outlook":
		url, err := h.mailboxService.OutlookAuthURL(state)
		if err != nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "outlook is not configured"})
			return
		}
		c.JSON(http.StatusOK, dto.AuthURLResponse{URL: url})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be gmail or outlook"})
	}
}

func (h *MailboxHandler) ConnectGmail(c *gin.Context) {
	h.connect(c, h.mailboxService.ConnectGmail)
}

func (h *MailboxHandler) ConnectOutlook(c *gin.Context) {
	h.connect(c, h.mailboxService.ConnectOutlook)
}

func (h *MailboxHandler) connect(c *gin.Context, connectFn func(ctx context.Context, workspaceID, userID int64, code string) (*model.Mailbox, error)) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	member := middleware.CurrentMember(c)

	var req dto.ConnectMailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mailbox, err := connectFn(ctx, member.WorkspaceID, user.ID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMailboxAlreadyConnected):
			c.JSON(http.StatusConflict, gin.H{"error": "mailbox is already connected"})
		case errors.Is(err, service.ErrOutlookNotConfigured):
			c.JSON(http.StatusNotImplemented, gin.H{"error": "outlook is not configured"})
		default:
			slog.ErrorContext(ctx, "failed to connect mailbox", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to connect mailbox"})
		}
		return
	}

	c.JSON(http.StatusCreated, mailbox)
}

func (h *MailboxHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	mailboxes, err := h.mailboxService.List(ctx, member.WorkspaceID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list mailboxes", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list mailboxes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"mailboxes": mailboxes})
}

func (h *MailboxHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	mailboxID, ok := pathID(c, "mailboxID")
	if !ok {
		return
	}

	mailbox, err := h.mailboxService.Get(ctx, member.WorkspaceID, mailboxID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "mailbox not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to get mailbox", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get mailbox"})
		return
	}

	c.JSON(http.StatusOK, mailbox)
}

func (h *MailboxHandler) Disconnect(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	mailboxID, ok := pathID(c, "mailboxID")
	if !ok {
		return
	}

	if err := h.mailboxService.Disconnect(ctx, member.WorkspaceID, mailboxID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "mailbox not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to disconnect mailbox", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect mailbox"})
		return
	}

	c.Status(http.StatusNoContent)
}
