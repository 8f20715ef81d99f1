package auth

import (
	"strconv"
	"time"

	"github.com/cinescope/api/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	Issuer   = "cinescope"
	Audience = "cinescope-api"

	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 30 * 24 * time.Hour
)

// Claims are the access-token claims. Subject carries the user id.
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are the refresh-token claims. The jti makes every signed
// string unique, so concurrent logins by the same user get distinct tokens
// and distinct store rows; everything else about the session lives in the
// store.
type RefreshClaims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies both token classes. Access and refresh
// tokens use separate secrets so a compromise of one does not compromise
// the other.
type TokenIssuer struct {
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenExpiry
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenExpiry
	}
	return &TokenIssuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (i *TokenIssuer) AccessTokenTTL() time.Duration {
	return i.accessTTL
}

func (i *TokenIssuer) RefreshTokenTTL() time.Duration {
	return i.refreshTTL
}

// IssueAccessToken mints a signed access token for the user. Pure function
// of the user and the current time; nothing is persisted.
func (i *TokenIssuer) IssueAccessToken(user *model.User) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(i.accessSecret))
}

// SignRefreshToken mints the signed refresh-token string and reports its
// expiry. Persisting the string is the caller's job; a refresh token is
// only usable once its row is committed to the store.
func (i *TokenIssuer) SignRefreshToken(user *model.User) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.refreshTTL)
	claims := RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.refreshSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyAccessToken validates signature, signing method, issuer, audience
// and expiry. Every failure collapses to ErrInvalidToken so callers cannot
// tell a client why a token was rejected.
func (i *TokenIssuer) VerifyAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(i.accessSecret), nil
	}, jwt.WithIssuer(Issuer), jwt.WithAudience(Audience), jwt.WithTimeFunc(func() time.Time { return i.now() }))

	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// VerifySignedRefreshToken checks the refresh-token string's signature and
// expiry under the refresh secret. Store state (existence, revocation) is
// checked separately, before this, by the service.
func (i *TokenIssuer) VerifySignedRefreshToken(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(i.refreshSecret), nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(func() time.Time { return i.now() }))

	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*RefreshClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
