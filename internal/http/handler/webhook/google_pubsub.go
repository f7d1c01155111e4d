package webhook

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/provider/google"
	"leadmap.app/server/internal/service"
)

const maxPushBodySize = 1 << 20

type GmailPushHandler struct {
	ingestService *service.IngestService
	pushToken     string
}

func NewGmailPushHandler(ingestService *service.IngestService, pushToken string) *GmailPushHandler {
	return &GmailPushHandler{ingestService: ingestService, pushToken: pushToken}
}

// Handle receives Pub/Sub push deliveries of Gmail change
// notifications. A 2xx acks the message; anything else triggers
// Pub/Sub redelivery, so only transient ingest failures return 5xx.
func (h *GmailPushHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	if h.pushToken != "" {
		token := c.Query("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.pushToken)) != 1 {
			slog.WarnContext(ctx, "pubsub push with bad token", "client_ip", c.ClientIP())
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	notification, messageID, err := google.DecodePushRequest(body)
	if err != nil {
		// Malformed deliveries would never succeed on retry. Ack them.
		slog.WarnContext(ctx, "undecodable pubsub push", "error", err)
		c.Status(http.StatusNoContent)
		return
	}

	result, err := h.ingestService.HandleGmailNotification(ctx, *notification, messageID)
	if err != nil {
		slog.ErrorContext(ctx, "gmail notification ingest failed",
			"error", err, "email_address", notification.EmailAddress)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}

	if result != nil && result.Duplicated {
		slog.DebugContext(ctx, "duplicate gmail notification acked", "message_id", messageID)
	}
	c.Status(http.StatusNoContent)
}
