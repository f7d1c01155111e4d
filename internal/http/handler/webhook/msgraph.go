package webhook

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/provider/msgraph"
	"leadmap.app/server/internal/service"
)

type GraphWebhookHandler struct {
	ingestService *service.IngestService
	clientState   string
}

func NewGraphWebhookHandler(ingestService *service.IngestService, clientState string) *GraphWebhookHandler {
	return &GraphWebhookHandler{ingestService: ingestService, clientState: clientState}
}

// Handle receives Graph change notifications. Graph validates the
// endpoint by POSTing with a validationToken query parameter that must
// be echoed back as plain text within 10 seconds.
func (h *GraphWebhookHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	if token := c.Query("validationToken"); token != "" {
		c.String(http.StatusOK, token)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	notifications, err := msgraph.DecodeNotifications(body)
	if err != nil {
		slog.WarnContext(ctx, "undecodable graph notification", "error", err)
		c.Status(http.StatusAccepted)
		return
	}

	// Graph batches notifications; process what we can and only fail
	// the delivery when an ingest hits a transient error.
	var failed bool
	for _, n := range notifications {
		if _, err := h.ingestService.HandleGraphNotification(ctx, n, h.clientState); err != nil {
			slog.ErrorContext(ctx, "graph notification ingest failed",
				"error", err, "subscription_id", n.SubscriptionID)
			failed = true
		}
	}
	if failed {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}

	c.Status(http.StatusAccepted)
}
