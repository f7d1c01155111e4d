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

type CampaignHandler struct {
	campaignService *service.CampaignService
}

func NewCampaignHandler(campaignService *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService}
}

func (h *CampaignHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	var req dto.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign, err := h.campaignService.Create(ctx, member.WorkspaceID, req.MailboxID, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mailbox not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to create campaign", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create campaign"})
		return
	}

	c.JSON(http.StatusCreated, campaign)
}

func (h *CampaignHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	campaigns, err := h.campaignService.List(ctx, member.WorkspaceID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list campaigns", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list campaigns"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

func (h *CampaignHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	campaignID, ok := pathID(c, "campaignID")
	if !ok {
		return
	}

	campaign, err := h.campaignService.Get(ctx, member.WorkspaceID, campaignID)
	if err != nil {
		h.respondError(c, err, "failed to get campaign")
		return
	}

	c.JSON(http.StatusOK, campaign)
}

func (h *CampaignHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	campaignID, ok := pathID(c, "campaignID")
	if !ok {
		return
	}

	if err := h.campaignService.Delete(ctx, member.WorkspaceID, campaignID); err != nil {
		h.respondError(c, err, "failed to delete campaign")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *CampaignHandler) SetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	campaignID, ok := pathID(c, "campaignID")
	if !ok {
		return
	}

	var req dto.SetCampaignStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.campaignService.SetStatus(ctx, member.WorkspaceID, campaignID, model.CampaignStatus(req.Status))
	if err != nil {
		if errors.Is(err, service.ErrCampaignHasNoSteps) {
			c.JSON(http.StatusConflict, gin.H{"error": "campaign needs at least one step before activation"})
			return
		}
		h.respondError(c, err, "failed to update campaign status")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *CampaignHandler) AddStep(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	campaignID, ok := pathID(c, "campaignID")
	if !ok {
		return
	}

	var req dto.AddStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := h.campaignService.AddStep(ctx, member.WorkspaceID, campaignID, req.Position, req.DelayHours, req.Subject, req.BodyTemplate)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTemplate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.respondError(c, err, "failed to add step")
		return
	}

	c.JSON(http.StatusCreated, step)
}

func (h *CampaignHandler) ListSteps(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	campaignID, ok := pathID(c, "campaignID")
	if !ok {
		return
	}

	steps, err := h.campaignService.ListSteps(ctx, member.WorkspaceID, campaignID)
	if err != nil {
		h.respondError(c, err, "failed to list steps")
		return
	}

	c.JSON(http.StatusOK, gin.H{"steps": steps})
}

func (h *CampaignHandler) EnrollLead(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	campaignID, ok := pathID(c, "campaignID")
	if !ok {
		return
	}

	var req dto.EnrollLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enrollment, err := h.campaignService.EnrollLead(ctx, member.WorkspaceID, campaignID, req.LeadID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCampaignHasNoSteps):
			c.JSON(http.StatusConflict, gin.H{"error": "campaign has no steps"})
		case errors.Is(err, service.ErrLeadHasNoEmail):
			c.JSON(http.StatusConflict, gin.H{"error": "lead has no email address"})
		default:
			h.respondError(c, err, "failed to enroll lead")
		}
		return
	}

	c.JSON(http.StatusCreated, enrollment)
}

func (h *CampaignHandler) respondError(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	slog.ErrorContext(c.Request.Context(), msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
