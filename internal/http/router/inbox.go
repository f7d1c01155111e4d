package router

import (
	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/handler"
)

// InboxRouter registers thread routes on the workspace group. Thread
// listing hangs off the owning mailbox.
func InboxRouter(ws *gin.RouterGroup, h *handler.InboxHandler) {
	ws.GET("/mailboxes/:mailboxID/threads", h.ListThreads)

	threads := ws.Group("/threads")
	threads.GET("/:threadID", h.GetThread)
	threads.PATCH("/:threadID/read", h.SetRead)
	threads.PATCH("/:threadID/star", h.SetStarred)
	threads.POST("/:threadID/lead", h.LinkLead)
	threads.GET("/:threadID/summary", h.Summary)
}
