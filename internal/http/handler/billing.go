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

type BillingHandler struct {
	billingService *service.BillingService
}

func NewBillingHandler(billingService *service.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

func (h *BillingHandler) Checkout(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	url, err := h.billingService.CreateCheckoutSession(ctx, member.WorkspaceID, req.PriceID, req.SuccessURL, req.CancelURL)
	if err != nil {
		if errors.Is(err, service.ErrBillingNotConfigured) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "billing is not enabled"})
			return
		}
		slog.ErrorContext(ctx, "failed to create checkout session", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, dto.CheckoutResponse{URL: url})
}

func (h *BillingHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	member := middleware.CurrentMember(c)

	sub, err := h.billingService.Status(ctx, member.WorkspaceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"status": "free"})
			return
		}
		slog.ErrorContext(ctx, "failed to get subscription status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get subscription status"})
		return
	}

	c.JSON(http.StatusOK, sub)
}
