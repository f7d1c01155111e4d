package router

import (
	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/handler"
)

func SocialRouter(rg *gin.RouterGroup, h *handler.SocialHandler) {
	rg.POST("/accounts", h.ConnectAccount)
	rg.GET("/accounts", h.ListAccounts)
	rg.DELETE("/accounts/:accountID", h.DisconnectAccount)

	rg.POST("/posts", h.CreatePost)
	rg.GET("/posts/:postID", h.GetPost)
	rg.PUT("/posts/:postID", h.UpdatePost)
	rg.DELETE("/posts/:postID", h.DeletePost)

	rg.POST("/schedules", h.Schedule)
	rg.GET("/schedules", h.ListSchedules)
	rg.DELETE("/schedules/:scheduleID", h.DeleteSchedule)
}
