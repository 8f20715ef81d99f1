package auth

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/cinescope/api/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the credential store. Lookups return (nil, nil) when no row
// matches; a non-nil error always means the store itself failed.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
}

// RefreshTokenStore persists issued refresh tokens keyed by token string.
type RefreshTokenStore interface {
	Insert(ctx context.Context, token *model.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, token string, at time.Time) error
}

// Service orchestrates registration, login, logout and refresh. All
// collaborators are injected so tests can substitute in-memory fakes.
type Service struct {
	users  UserStore
	tokens RefreshTokenStore
	issuer *TokenIssuer
	now    func() time.Time
}

func NewService(users UserStore, tokens RefreshTokenStore, issuer *TokenIssuer) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		issuer: issuer,
		now:    time.Now,
	}
}

func (s *Service) Issuer() *TokenIssuer {
	return s.issuer
}

// TokenPair is the result of a successful registration or login.
type TokenPair struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Register creates a user with the default role and issues both tokens.
func (s *Service) Register(ctx context.Context, username, email, password string) (*TokenPair, error) {
	email = NormalizeEmail(email)
	username = strings.TrimSpace(username)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, &PersistenceError{Op: "find user by email", Err: err}
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	existing, err = s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, &PersistenceError{Op: "find user by username", Err: err}
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, &PersistenceError{Op: "create user", Err: err}
	}

	return s.issueTokenPair(ctx, user)
}

// Login authenticates by email and password. Unknown email and wrong
// password produce the same error so the response cannot be used to
// enumerate accounts.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, &PersistenceError{Op: "find user by email", Err: err}
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokenPair(ctx, user)
}

// Logout revokes the presented refresh token. Idempotent: revoking an
// already-revoked or unknown token still succeeds, since the end state
// (token unusable) is already achieved. Other sessions are untouched.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	record, err := s.tokens.FindByToken(ctx, token)
	if err != nil {
		return &PersistenceError{Op: "find refresh token", Err: err}
	}
	if record == nil || record.Revoked() {
		return nil
	}
	if err := s.tokens.Revoke(ctx, token, s.now()); err != nil {
		return &PersistenceError{Op: "revoke refresh token", Err: err}
	}
	return nil
}

// Refresh validates the refresh token and mints a new access token bound
// to the owning user's current role and username. The refresh token itself
// is not rotated; a still-valid token can be exchanged again.
func (s *Service) Refresh(ctx context.Context, token string) (string, error) {
	record, err := s.VerifyRefreshToken(ctx, token)
	if err != nil {
		return "", err
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return "", &PersistenceError{Op: "find user by id", Err: err}
	}
	if user == nil {
		return "", ErrInvalidToken
	}

	return s.issuer.IssueAccessToken(user)
}

// VerifyRefreshToken runs the exchange checks in order: store lookup,
// revocation, then signature and expiry. The store is the authoritative
// veto; a revoked-and-expired token reports revoked, never expired.
func (s *Service) VerifyRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	record, err := s.tokens.FindByToken(ctx, token)
	if err != nil {
		return nil, &PersistenceError{Op: "find refresh token", Err: err}
	}
	if record == nil {
		return nil, ErrTokenNotFound
	}
	if record.Revoked() {
		return nil, ErrTokenRevoked
	}
	if _, err := s.issuer.VerifySignedRefreshToken(token); err != nil {
		return nil, ErrInvalidToken
	}
	return record, nil
}

// issueTokenPair mints both tokens and persists the refresh token. If the
// store write fails no refresh token is returned: a token whose row was
// never committed would fail every subsequent exchange.
func (s *Service) issueTokenPair(ctx context.Context, user *model.User) (*TokenPair, error) {
	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, expiresAt, err := s.issuer.SignRefreshToken(user)
	if err != nil {
		return nil, err
	}

	record := &model.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}
	if err := s.tokens.Insert(ctx, record); err != nil {
		log.Printf("Failed to store refresh token for user %d: %v", user.ID, err)
		return nil, &PersistenceError{Op: "store refresh token", Err: err}
	}

	return &TokenPair{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.issuer.AccessTokenTTL().Seconds()),
	}, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "find user by id", Err: err}
	}
	return user, nil
}

// UpdateProfile changes a user's username and avatar. Email, role and
// password are not touched here.
func (s *Service) UpdateProfile(ctx context.Context, id int64, username, avatarURL string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "find user by id", Err: err}
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	username = strings.TrimSpace(username)
	if username != "" && username != user.Username {
		existing, err := s.users.FindByUsername(ctx, username)
		if err != nil {
			return nil, &PersistenceError{Op: "find user by username", Err: err}
		}
		if existing != nil && existing.ID != user.ID {
			return nil, ErrUsernameTaken
		}
		user.Username = username
	}
	if avatarURL != "" {
		user.AvatarURL = avatarURL
	}
	user.UpdatedAt = s.now()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, &PersistenceError{Op: "update user", Err: err}
	}
	return user, nil
}

// NormalizeEmail lowercases and trims an email for the case-insensitive
// uniqueness rule.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
