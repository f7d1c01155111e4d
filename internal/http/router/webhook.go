package router

import (
	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/handler/webhook"
)

func WebhookRouter(rg *gin.RouterGroup, gmail *webhook.GmailPushHandler, graph *webhook.GraphWebhookHandler, stripe *webhook.StripeWebhookHandler) {
	rg.POST("/google/pubsub", gmail.Handle)
	rg.POST("/microsoft/graph", graph.Handle)
	rg.POST("/stripe", stripe.Handle)
}
