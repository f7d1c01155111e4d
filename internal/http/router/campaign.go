package router

import (
	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/handler"
	"leadmap.app/server/internal/http/middleware"
)

func CampaignRouter(rg *gin.RouterGroup, h *handler.CampaignHandler) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:campaignID", h.Get)
	rg.DELETE("/:campaignID", middleware.RequireOwner(), h.Delete)
	rg.PATCH("/:campaignID/status", h.SetStatus)
	rg.POST("/:campaignID/steps", h.AddStep)
	rg.GET("/:campaignID/steps", h.ListSteps)
	rg.POST("/:campaignID/enrollments", h.EnrollLead)
}
