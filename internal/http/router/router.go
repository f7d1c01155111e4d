package router

import (
	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/handler"
	"leadmap.app/server/internal/http/handler/webhook"
	"leadmap.app/server/internal/http/middleware"
	"leadmap.app/server/internal/service"
)

type RouterConfig struct {
	DashboardURL     string
	IsProduction     bool
	PubSubPushToken  string
	GraphClientState string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authHandler := handler.NewAuthHandler(services.Auth(), cfg.DashboardURL, cfg.IsProduction)
	AuthRouter(router.Group("/auth"), authHandler)

	gmailPush := webhook.NewGmailPushHandler(services.Ingest(), cfg.PubSubPushToken)
	graphHook := webhook.NewGraphWebhookHandler(services.Ingest(), cfg.GraphClientState)
	stripeHook := webhook.NewStripeWebhookHandler(services.Billing())
	WebhookRouter(router.Group("/webhooks"), gmailPush, graphHook, stripeHook)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(services.Auth()))
	{
		workspaceHandler := handler.NewWorkspaceHandler(services.Workspaces())
		v1.GET("/me", workspaceHandler.Me)
		WorkspaceRouter(v1.Group("/workspaces"), workspaceHandler)

		// Everything below is scoped to one workspace and requires
		// membership.
		ws := v1.Group("/workspaces/:workspaceID")
		ws.Use(middleware.WorkspaceScope(services.Workspaces()))

		mailboxHandler := handler.NewMailboxHandler(services.Mailboxes())
		MailboxRouter(ws.Group("/mailboxes"), mailboxHandler)

		inboxHandler := handler.NewInboxHandler(services.Inbox())
		InboxRouter(ws, inboxHandler)

		leadHandler := handler.NewLeadHandler(services.Leads())
		LeadRouter(ws.Group("/leads"), leadHandler, inboxHandler)

		campaignHandler := handler.NewCampaignHandler(services.Campaigns())
		CampaignRouter(ws.Group("/campaigns"), campaignHandler)

		socialHandler := handler.NewSocialHandler(services.Social())
		SocialRouter(ws.Group("/social"), socialHandler)

		searchHandler := handler.NewSearchHandler(services.Search())
		ws.GET("/search", searchHandler.Search)

		analyticsHandler := handler.NewAnalyticsHandler(services.Analytics())
		ws.GET("/analytics/summary", analyticsHandler.Summary)
		ws.GET("/analytics/events", analyticsHandler.ListEvents)

		billingHandler := handler.NewBillingHandler(services.Billing())
		BillingRouter(ws.Group("/billing"), billingHandler)
	}
}
