package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"salesops-console/internal/auth"

	"github.com/gin-gonic/gin"
)

func doRequest(t *testing.T, role string, mw gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if role != "" {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "u1", "u@example.com", role))
		}
		c.Next()
	})
	r.GET("/x", mw, func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole(t *testing.T) {
	if code := doRequest(t, RoleUser, RequireAnyRole(RoleUser)); code != http.StatusOK {
		t.Fatalf("expected 200 for allowed role, got %d", code)
	}
	if code := doRequest(t, RoleUser, RequireAdmin()); code != http.StatusForbidden {
		t.Fatalf("expected 403 for user on admin route, got %d", code)
	}
	if code := doRequest(t, RoleAdmin, RequireAnyRole(RoleUser)); code != http.StatusOK {
		t.Fatalf("expected admin bypass, got %d", code)
	}
	if code := doRequest(t, "", RequireAnyRole(RoleUser)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", code)
	}
}
