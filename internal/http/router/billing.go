package router

import (
	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/handler"
	"leadmap.app/server/internal/http/middleware"
)

func BillingRouter(rg *gin.RouterGroup, h *handler.BillingHandler) {
	// Checkout changes what the workspace pays for; members only read.
	rg.POST("/checkout", middleware.RequireOwner(), h.Checkout)
	rg.GET("/status", h.Status)
}
