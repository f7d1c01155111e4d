package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/service"
)

const (
	ctxUserKey   = "auth.user"
	ctxMemberKey = "auth.member"
)

// Auth validates the bearer token and stores the authenticated user in the
// gin context.
func Auth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// WorkspaceScope resolves the :workspaceID path parameter and verifies the
// authenticated user is a member of that workspace.
func WorkspaceScope(workspaces *service.WorkspaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		workspaceID, err := strconv.ParseInt(c.Param("workspaceID"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
			return
		}

		member, err := workspaces.Authorize(c.Request.Context(), workspaceID, user.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a workspace member"})
			return
		}

		c.Set(ctxMemberKey, member)
		c.Next()
	}
}

// RequireOwner refuses members without the owner role. It must run
// after WorkspaceScope.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		member := CurrentMember(c)
		if member == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if member.Role != model.MemberRoleOwner {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "workspace owner required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside the Auth
// middleware.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

// CurrentMember returns the workspace membership resolved by WorkspaceScope.
func CurrentMember(c *gin.Context) *model.WorkspaceMember {
	v, ok := c.Get(ctxMemberKey)
	if !ok {
		return nil
	}
	member, _ := v.(*model.WorkspaceMember)
	return member
}
