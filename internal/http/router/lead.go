package router

import (
	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/handler"
)

func LeadRouter(rg *gin.RouterGroup, h *handler.LeadHandler, inbox *handler.InboxHandler) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.POST("/import", h.Import)
	rg.GET("/:leadID", h.Get)
	rg.PUT("/:leadID", h.Update)
	rg.DELETE("/:leadID", h.Delete)
	rg.PATCH("/:leadID/stage", h.SetStage)
	rg.GET("/:leadID/threads", inbox.ListThreadsByLead)
}
