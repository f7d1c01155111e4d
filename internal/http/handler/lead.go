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

type LeadHandler struct {
	leadService *service.LeadService
}

func NewLeadHandler(leadService *service.LeadService) *LeadHandler {
	return &LeadHandler{leadService: leadService}
}

func (h *LeadHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	var req dto.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lead, err := h.leadService.Create(ctx, member.WorkspaceID, req.ToModel(member.WorkspaceID))
	if err != nil {
		slog.ErrorContext(ctx, "failed to create lead", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create lead"})
		return
	}

	c.JSON(http.StatusCreated, lead)
}

func (h *LeadHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	limit, offset := pagination(c, 50, 200)

	var stage *model.LeadStage
	if raw := c.Query("stage"); raw != "" {
		s := model.LeadStage(raw)
		stage = &s
	}

	leads, err := h.leadService.List(ctx, member.WorkspaceID, stage, limit, offset)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list leads", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list leads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

func (h *LeadHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	leadID, ok := pathID(c, "leadID")
	if !ok {
		return
	}

	lead, err := h.leadService.Get(ctx, member.WorkspaceID, leadID)
	if err != nil {
		h.respondError(c, err, "failed to get lead")
		return
	}

	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	leadID, ok := pathID(c, "leadID")
	if !ok {
		return
	}

	var req dto.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lead := req.ToModel(member.WorkspaceID)
	lead.ID = leadID

	updated, err := h.leadService.Update(ctx, member.WorkspaceID, lead)
	if err != nil {
		h.respondError(c, err, "failed to update lead")
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *LeadHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	leadID, ok := pathID(c, "leadID")
	if !ok {
		return
	}

	if err := h.leadService.Delete(ctx, member.WorkspaceID, leadID); err != nil {
		h.respondError(c, err, "failed to delete lead")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *LeadHandler) SetStage(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	member := middleware.CurrentMember(c)

	leadID, ok := pathID(c, "leadID")
	if !ok {
		return
	}

	var req dto.SetStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stage := model.LeadStage(req.Stage)
	if !stage.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stage"})
		return
	}

	lead, err := h.leadService.SetStage(ctx, member.WorkspaceID, leadID, stage, user.ID)
	if err != nil {
		h.respondError(c, err, "failed to move lead")
		return
	}

	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) Import(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	var req dto.ImportListingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.leadService.ImportListings(ctx, member.WorkspaceID, model.LeadSource(req.Source), req.Listings)
	if err != nil {
		slog.ErrorContext(ctx, "failed to import listings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to import listings"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *LeadHandler) respondError(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}
	slog.ErrorContext(c.Request.Context(), msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
