package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cinescope/api/internal/auth"
	"github.com/cinescope/api/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(issuer *auth.TokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/protected", AuthMiddleware(issuer), func(c *gin.Context) {
		userID, _ := c.Get("userID")
		role, _ := c.Get("userRole")
		c.JSON(http.StatusOK, gin.H{"userID": userID, "role": role})
	})
	r.GET("/admin", AdminMiddleware(issuer), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/moderate", RequireRole(issuer, model.RoleAdmin, model.RoleModerator), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/open", OptionalAuthMiddleware(issuer), func(c *gin.Context) {
		_, authed := c.Get("userID")
		c.JSON(http.StatusOK, gin.H{"authenticated": authed})
	})
	return r
}

func issueFor(t *testing.T, issuer *auth.TokenIssuer, role string) string {
	t.Helper()
	token, err := issuer.IssueAccessToken(&model.User{ID: 7, Username: "ana", Role: role})
	require.NoError(t, err)
	return token
}

func doRequest(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	issuer := auth.NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	r := testRouter(issuer)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + issueFor(t, issuer, model.RoleUser), http.StatusOK},
		{"lowercase bearer", "bearer " + issueFor(t, issuer, model.RoleUser), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, "/protected", tt.authHeader)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthMiddleware_WrongSecretRejected(t *testing.T) {
	issuer := auth.NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	other := auth.NewTokenIssuer("other-secret", "refresh-secret", time.Minute, time.Hour)
	r := testRouter(issuer)

	w := doRequest(r, "/protected", "Bearer "+issueFor(t, other, model.RoleUser))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	issuer := auth.NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	r := testRouter(issuer)

	tests := []struct {
		name       string
		path       string
		role       string
		wantStatus int
	}{
		{"user blocked from admin", "/admin", model.RoleUser, http.StatusForbidden},
		{"moderator blocked from admin", "/admin", model.RoleModerator, http.StatusForbidden},
		{"admin allowed", "/admin", model.RoleAdmin, http.StatusOK},
		{"user blocked from moderation", "/moderate", model.RoleUser, http.StatusForbidden},
		{"moderator allowed to moderate", "/moderate", model.RoleModerator, http.StatusOK},
		{"admin allowed to moderate", "/moderate", model.RoleAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.path, "Bearer "+issueFor(t, issuer, tt.role))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequireRole_NoToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	r := testRouter(issuer)

	w := doRequest(r, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	issuer := auth.NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	r := testRouter(issuer)

	w := doRequest(r, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)

	w = doRequest(r, "/open", "Bearer "+issueFor(t, issuer, model.RoleUser))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":true`)

	// A bad token on an optional route is ignored, not rejected
	w = doRequest(r, "/open", "Bearer garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)
}
