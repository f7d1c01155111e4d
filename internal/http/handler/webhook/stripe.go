package webhook

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/service"
)

// Stripe recommends a 64KB cap plus change on webhook payloads.
const maxStripeBodySize = 256 << 10

type StripeWebhookHandler struct {
	billingService *service.BillingService
}

func NewStripeWebhookHandler(billingService *service.BillingService) *StripeWebhookHandler {
	return &StripeWebhookHandler{billingService: billingService}
}

func (h *StripeWebhookHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxStripeBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.billingService.HandleWebhook(ctx, body, signature); err != nil {
		slog.ErrorContext(ctx, "stripe webhook failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook rejected"})
		return
	}

	c.Status(http.StatusOK)
}
