package database

import (
	"github.com/cinescope/api/internal/config"
	"github.com/cinescope/api/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Movie{},
		&model.WatchlistItem{},
		&model.Review{},
		&model.RequestLog{},
	)
	if err != nil {
		return err
	}

	// Email uniqueness is case-insensitive, so the index is on lower(email)
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users(lower(email))")

	return nil
}
