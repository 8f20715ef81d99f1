package store

import (
	"context"
	"errors"
	"time"

	"github.com/cinescope/api/internal/model"
	"gorm.io/gorm"
)

// RefreshTokenStore is the gorm-backed refresh-token store. All writes are
// single-row, so no transaction discipline is needed beyond the database's
// own atomic row update.
type RefreshTokenStore struct {
	db *gorm.DB
}

func NewRefreshTokenStore(db *gorm.DB) *RefreshTokenStore {
	return &RefreshTokenStore{db: db}
}

func (s *RefreshTokenStore) Insert(ctx context.Context, token *model.RefreshToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *RefreshTokenStore) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var record model.RefreshToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RefreshTokenStore) Revoke(ctx context.Context, token string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", at).Error
}

// DeleteExpired prunes rows whose expiry is past. Validation never needs
// this; it exists for the housekeeping job only.
func (s *RefreshTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&model.RefreshToken{})
	return result.RowsAffected, result.Error
}
