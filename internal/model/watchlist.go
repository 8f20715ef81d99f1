package model

import (
	"time"

	"gorm.io/datatypes"
)

// WatchlistItem pins a TMDB movie to a user's watchlist. Snapshot holds the
// denormalized movie payload (title, poster, release date) captured at add
// time so listing the watchlist never hits the upstream API.
type WatchlistItem struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64          `gorm:"not null;uniqueIndex:idx_watchlist_user_movie,priority:1" json:"userId"`
	TMDBID    int64          `gorm:"column:tmdb_id;not null;uniqueIndex:idx_watchlist_user_movie,priority:2" json:"tmdbId"`
	Snapshot  datatypes.JSON `json:"snapshot"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (WatchlistItem) TableName() string {
	return "watchlist_items"
}
