package model

import "time"

// RefreshToken is one issued refresh credential. The token string is itself
// a signed JWT; it is stored redundantly here as the lookup key. A token is
// valid iff the row exists, RevokedAt is unset and ExpiresAt is in the future.
type RefreshToken struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64      `gorm:"not null;index" json:"userId"`
	Token     string     `gorm:"not null;uniqueIndex;size:512" json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
