package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cinescope/api/internal/auth"
	"github.com/cinescope/api/internal/middleware"
	"github.com/cinescope/api/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// -------- in-memory stores --------

type memUserStore struct {
	users  map[int64]*model.User
	nextID int64
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[int64]*model.User{}, nextID: 1}
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range s.users {
		if u.Email == auth.NormalizeEmail(email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memUserStore) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memUserStore) FindByID(_ context.Context, id int64) (*model.User, error) {
	if u, ok := s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (s *memUserStore) Create(_ context.Context, user *model.User) error {
	user.ID = s.nextID
	s.nextID++
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memUserStore) Update(_ context.Context, user *model.User) error {
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

type memTokenStore struct {
	tokens map[string]*model.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: map[string]*model.RefreshToken{}}
}

func (s *memTokenStore) Insert(_ context.Context, token *model.RefreshToken) error {
	copied := *token
	s.tokens[token.Token] = &copied
	return nil
}

func (s *memTokenStore) FindByToken(_ context.Context, token string) (*model.RefreshToken, error) {
	if record, ok := s.tokens[token]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, nil
}

func (s *memTokenStore) Revoke(_ context.Context, token string, at time.Time) error {
	if record, ok := s.tokens[token]; ok && record.RevokedAt == nil {
		record.RevokedAt = &at
	}
	return nil
}

// -------- harness --------

type authTestEnv struct {
	router *gin.Engine
	users  *memUserStore
	issuer *auth.TokenIssuer
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := newMemUserStore()
	issuer := auth.NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 30*24*time.Hour)
	service := auth.NewService(users, newMemTokenStore(), issuer)
	h := NewAuthHandler(service, &oauth2.Config{}, "http://localhost:3000")

	r := gin.New()
	api := r.Group("/api/auth")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)
	api.POST("/refresh", h.Refresh)
	api.GET("/me", middleware.AuthMiddleware(issuer), h.Me)
	api.PUT("/me", middleware.AuthMiddleware(issuer), h.UpdateMe)

	return &authTestEnv{router: r, users: users, issuer: issuer}
}

func (e *authTestEnv) post(t *testing.T, path string, body interface{}, header string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *authTestEnv) register(t *testing.T) TokenResponse {
	t.Helper()
	w := e.post(t, "/api/auth/register", gin.H{
		"username":        "ana",
		"email":           "ana@x.com",
		"password":        "secret-password",
		"confirmPassword": "secret-password",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// -------- tests --------

func TestRegisterEndpoint(t *testing.T) {
	env := newAuthTestEnv(t)

	w := env.post(t, "/api/auth/register", gin.H{
		"username":        "ana",
		"email":           "ana@x.com",
		"password":        "secret-password",
		"confirmPassword": "secret-password",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.User)
	assert.Equal(t, "ana", resp.User.Username)
	assert.Equal(t, model.RoleUser, resp.User.Role)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := env.issuer.VerifyAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, model.RoleUser, claims.Role)

	// The password hash never leaks into the response body
	assert.NotContains(t, w.Body.String(), "passwordHash")
	assert.NotContains(t, w.Body.String(), "password_hash")
}

func TestRegisterEndpoint_Validation(t *testing.T) {
	env := newAuthTestEnv(t)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"missing email", gin.H{"username": "ana", "password": "secret-password", "confirmPassword": "secret-password"}, http.StatusBadRequest},
		{"bad email", gin.H{"username": "ana", "email": "nope", "password": "secret-password", "confirmPassword": "secret-password"}, http.StatusBadRequest},
		{"short password", gin.H{"username": "ana", "email": "a@x.com", "password": "short", "confirmPassword": "short"}, http.StatusBadRequest},
		{"mismatched confirm", gin.H{"username": "ana", "email": "a@x.com", "password": "secret-password", "confirmPassword": "different-pass"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.post(t, "/api/auth/register", tt.body, "")
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}

func TestRegisterEndpoint_DuplicateEmail(t *testing.T) {
	env := newAuthTestEnv(t)
	env.register(t)

	resp := env.post(t, "/api/auth/register", gin.H{
		"username":        "other",
		"email":           "ANA@x.com",
		"password":        "secret-password",
		"confirmPassword": "secret-password",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestLoginEndpoint_SameErrorForUnknownAndWrong(t *testing.T) {
	env := newAuthTestEnv(t)
	env.register(t)

	unknown := env.post(t, "/api/auth/login", gin.H{"email": "nobody@x.com", "password": "secret-password"}, "")
	wrong := env.post(t, "/api/auth/login", gin.H{"email": "ana@x.com", "password": "wrong-password"}, "")

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String(), "responses must be indistinguishable")
}

func TestRefreshEndpoint(t *testing.T) {
	env := newAuthTestEnv(t)
	registered := env.register(t)

	// The refresh token from registration exchanges for a fresh access token
	resp := env.post(t, "/api/auth/refresh", gin.H{"refreshToken": registered.RefreshToken}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int    `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, int((15 * time.Minute).Seconds()), body.ExpiresIn)

	claims, err := env.issuer.VerifyAccessToken(body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID)
}

func TestRefreshEndpoint_UnknownTokenIs401Not500(t *testing.T) {
	env := newAuthTestEnv(t)

	resp := env.post(t, "/api/auth/refresh", gin.H{"refreshToken": "never-issued"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, resp.Body.String(), "invalid or expired refresh token")
}

func TestRefreshEndpoint_MissingToken(t *testing.T) {
	env := newAuthTestEnv(t)

	resp := env.post(t, "/api/auth/refresh", gin.H{}, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRefreshEndpoint_TwiceWithSameToken(t *testing.T) {
	env := newAuthTestEnv(t)
	registered := env.register(t)

	first := env.post(t, "/api/auth/refresh", gin.H{"refreshToken": registered.RefreshToken}, "")
	second := env.post(t, "/api/auth/refresh", gin.H{"refreshToken": registered.RefreshToken}, "")

	// No rotation: the same still-valid token exchanges repeatedly
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
}

func TestRefreshEndpoint_ReflectsRoleChange(t *testing.T) {
	env := newAuthTestEnv(t)
	registered := env.register(t)

	// Out-of-band promotion
	env.users.users[registered.User.ID].Role = model.RoleModerator

	resp := env.post(t, "/api/auth/refresh", gin.H{"refreshToken": registered.RefreshToken}, "")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))

	claims, err := env.issuer.VerifyAccessToken(body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleModerator, claims.Role)
}

func TestLogoutEndpoint_IdempotentAndRevokes(t *testing.T) {
	env := newAuthTestEnv(t)
	registered := env.register(t)

	first := env.post(t, "/api/auth/logout", gin.H{"refreshToken": registered.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, first.Code)

	// Refresh now fails with a generic 401
	refresh := env.post(t, "/api/auth/refresh", gin.H{"refreshToken": registered.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, refresh.Code)

	// Logging out again, and with an unknown token, still succeeds
	second := env.post(t, "/api/auth/logout", gin.H{"refreshToken": registered.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, second.Code)
	unknown := env.post(t, "/api/auth/logout", gin.H{"refreshToken": "never-issued"}, "")
	assert.Equal(t, http.StatusOK, unknown.Code)
}

func TestLogoutEndpoint_BearerHeader(t *testing.T) {
	env := newAuthTestEnv(t)
	registered := env.register(t)

	resp := env.post(t, "/api/auth/logout", nil, "Bearer "+registered.RefreshToken)
	assert.Equal(t, http.StatusOK, resp.Code)

	refresh := env.post(t, "/api/auth/refresh", gin.H{"refreshToken": registered.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, refresh.Code)
}

func TestMeEndpoint(t *testing.T) {
	env := newAuthTestEnv(t)
	registered := env.register(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+registered.AccessToken)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var user model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, registered.User.ID, user.ID)
	assert.NotContains(t, w.Body.String(), "passwordHash")
}
