package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/model"
)

func init() { gin.SetMode(gin.TestMode) }

func ownerGateRequest(member *model.WorkspaceMember) *httptest.ResponseRecorder {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if member != nil {
			c.Set(ctxMemberKey, member)
		}
	})
	router.DELETE("/campaigns/1", RequireOwner(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/campaigns/1", nil))
	return w
}

func TestRequireOwnerAllowsOwner(t *testing.T) {
	w := ownerGateRequest(&model.WorkspaceMember{
		WorkspaceID: 1, UserID: 2, Role: model.MemberRoleOwner,
	})
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRequireOwnerRefusesMember(t *testing.T) {
	w := ownerGateRequest(&model.WorkspaceMember{
		WorkspaceID: 1, UserID: 2, Role: model.MemberRoleMember,
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRequireOwnerWithoutMembership(t *testing.T) {
	w := ownerGateRequest(nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
