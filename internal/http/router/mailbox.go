package router

import (
	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/handler"
)

func MailboxRouter(rg *gin.RouterGroup, h *handler.MailboxHandler) {
	rg.GET("/auth-url", h.AuthURL)
	rg.POST("/gmail", h.ConnectGmail)
	rg.POST("/outlook", h.ConnectOutlook)
	rg.GET("", h.List)
	rg.GET("/:mailboxID", h.Get)
	rg.DELETE("/:mailboxID", h.Disconnect)
}
