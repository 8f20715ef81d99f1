package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cinescope/api/internal/model"
	"golang.org/x/oauth2"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GetGoogleUserInfo fetches the profile for an exchanged OAuth token.
func GetGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// LoginWithGoogle finds or creates the user matching a Google profile and
// issues a token pair. Accounts created this way get an unguessable random
// password hash; they can only sign in through Google until a password
// reset sets a real one.
func (s *Service) LoginWithGoogle(ctx context.Context, info *GoogleUserInfo) (*TokenPair, error) {
	email := NormalizeEmail(info.Email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, &PersistenceError{Op: "find user by email", Err: err}
	}

	if user == nil {
		user = &model.User{
			Username:     googleUsername(info, email),
			Email:        email,
			PasswordHash: randomPasswordHash(),
			Role:         model.RoleUser,
			AvatarURL:    info.Picture,
			CreatedAt:    s.now(),
			UpdatedAt:    s.now(),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, &PersistenceError{Op: "create user", Err: err}
		}
	} else if info.Picture != "" && user.AvatarURL != info.Picture {
		user.AvatarURL = info.Picture
		user.UpdatedAt = s.now()
		if err := s.users.Update(ctx, user); err != nil {
			return nil, &PersistenceError{Op: "update user", Err: err}
		}
	}

	return s.issueTokenPair(ctx, user)
}

func googleUsername(info *GoogleUserInfo, email string) string {
	if info.Name != "" {
		return info.Name
	}
	for i, r := range email {
		if r == '@' {
			return email[:i]
		}
	}
	return email
}

// randomPasswordHash returns a value no bcrypt comparison will ever match,
// so password login stays closed for Google-created accounts.
func randomPasswordHash() string {
	b := make([]byte, 32)
	rand.Read(b)
	return "google-oauth:" + base64.URLEncoding.EncodeToString(b)
}
