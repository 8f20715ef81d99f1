package middleware

import (
	"net/http"
	"strings"

	"github.com/cinescope/api/internal/auth"
	"github.com/cinescope/api/internal/model"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware requires a valid access token
func AuthMiddleware(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, issuer)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		setUserContext(c, claims)
		c.Next()
	}
}

// RequireRole requires a valid access token AND one of the given roles.
// Role is read from the token claims, so a role change takes effect when
// the client next refreshes its access token.
func RequireRole(issuer *auth.TokenIssuer, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, issuer)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		allowed := false
		for _, role := range roles {
			if claims.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}

		setUserContext(c, claims)
		c.Next()
	}
}

// AdminMiddleware is RequireRole restricted to admins.
func AdminMiddleware(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return RequireRole(issuer, model.RoleAdmin)
}

// OptionalAuthMiddleware extracts user info if a token is present, but
// doesn't require it
func OptionalAuthMiddleware(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, issuer); ok {
			setUserContext(c, claims)
		}
		c.Next()
	}
}

func bearerClaims(c *gin.Context, issuer *auth.TokenIssuer) (*auth.Claims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, false
	}

	claims, err := issuer.VerifyAccessToken(parts[1])
	if err != nil {
		return nil, false
	}
	return claims, true
}

func setUserContext(c *gin.Context, claims *auth.Claims) {
	c.Set("userID", claims.UserID)
	c.Set("username", claims.Username)
	c.Set("userRole", claims.Role)
}
