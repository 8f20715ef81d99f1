package handler

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/cinescope/api/internal/auth"
	"github.com/cinescope/api/internal/middleware"
	"github.com/cinescope/api/internal/model"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

type AuthHandler struct {
	service      *auth.Service
	googleConfig *oauth2.Config
	frontendURL  string
}

func NewAuthHandler(service *auth.Service, googleConfig *oauth2.Config, frontendURL string) *AuthHandler {
	return &AuthHandler{
		service:      service,
		googleConfig: googleConfig,
		frontendURL:  frontendURL,
	}
}

type TokenResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int         `json:"expiresIn"`
	User         *model.User `json:"user"`
}

type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=50"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

// Register creates an account and signs the new user in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and matching passwords are required"})
		return
	}

	pair, err := h.service.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, auth.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case auth.IsPersistence(err):
			log.Printf("Register failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		default:
			log.Printf("Register failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, tokenResponse(pair))
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials for a token pair. Unknown email and wrong
// password get the same response.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	pair, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		middleware.RecordLogin(false)
		if auth.IsPersistence(err) {
			log.Printf("Login failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	middleware.RecordLogin(true)
	c.JSON(http.StatusOK, tokenResponse(pair))
}

// Logout revokes the presented refresh token. Always reports success: a
// revoked or unknown token is already unusable.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := refreshTokenFromRequest(c)

	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		log.Printf("Logout failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh exchanges a valid refresh token for a new access token bound to
// the user's current role.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}

	accessToken, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		middleware.RecordTokenRefresh(false)
		if auth.IsPersistence(err) {
			log.Printf("Refresh failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
			return
		}
		// not-found, revoked and invalid all collapse to the same response
		log.Printf("Refresh rejected: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}

	middleware.RecordTokenRefresh(true)
	c.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"expiresIn":   int(h.service.Issuer().AccessTokenTTL().Seconds()),
	})
}

// Me returns the current user
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), userID.(int64))
	if err != nil {
		log.Printf("Failed to load user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

type UpdateProfileRequest struct {
	Username  string `json:"username" binding:"omitempty,min=3,max=50"`
	AvatarURL string `json:"avatarUrl" binding:"omitempty,url"`
}

// UpdateMe updates the current user's profile.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile fields"})
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), userID.(int64), req.Username, req.AvatarURL)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Profile update failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// GoogleAuth redirects to the Google OAuth authorization URL
func (h *AuthHandler) GoogleAuth(c *gin.Context) {
	state := generateState()
	// Store state in cookie for CSRF protection
	c.SetCookie("oauth_state", state, 600, "/", "", false, true)

	url := h.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback handles the Google OAuth callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	savedState, err := c.Cookie("oauth_state")
	if err != nil || state != savedState {
		c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"?error=invalid_state")
		return
	}
	c.SetCookie("oauth_state", "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"?error=no_code")
		return
	}

	token, err := h.googleConfig.Exchange(c.Request.Context(), code)
	if err != nil {
		log.Printf("Failed to exchange code: %v", err)
		c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"?error=exchange_failed")
		return
	}

	userInfo, err := auth.GetGoogleUserInfo(c.Request.Context(), token)
	if err != nil {
		log.Printf("Failed to get user info: %v", err)
		c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"?error=user_info_failed")
		return
	}

	pair, err := h.service.LoginWithGoogle(c.Request.Context(), userInfo)
	if err != nil {
		log.Printf("Google login failed: %v", err)
		c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"?error=token_failed")
		return
	}

	redirectURL := h.frontendURL + "?accessToken=" + pair.AccessToken + "&refreshToken=" + pair.RefreshToken
	c.Redirect(http.StatusTemporaryRedirect, redirectURL)
}

func tokenResponse(pair *auth.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         pair.User,
	}
}

// refreshTokenFromRequest reads the refresh token from the Authorization
// header or, failing that, the request body.
func refreshTokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
