package router

import (
	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/handler"
)

func WorkspaceRouter(rg *gin.RouterGroup, h *handler.WorkspaceHandler) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:workspaceID", h.Get)
	rg.PATCH("/:workspaceID", h.Rename)
	rg.DELETE("/:workspaceID", h.Delete)
	rg.GET("/:workspaceID/members", h.ListMembers)
	rg.POST("/:workspaceID/members", h.AddMember)
	rg.DELETE("/:workspaceID/members/:userID", h.RemoveMember)
}
