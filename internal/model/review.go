package model

import "time"

type Review struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"not null;uniqueIndex:idx_reviews_user_movie,priority:1" json:"userId"`
	TMDBID     int64     `gorm:"column:tmdb_id;not null;uniqueIndex:idx_reviews_user_movie,priority:2;index" json:"tmdbId"`
	MovieTitle string    `gorm:"not null;size:255" json:"movieTitle"`
	Rating     int       `gorm:"not null" json:"rating"`
	Body       string    `gorm:"type:text" json:"body"`
	Status     string    `gorm:"default:'visible';size:20" json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Review) TableName() string {
	return "reviews"
}

// Status constants
const (
	ReviewVisible = "visible"
	ReviewFlagged = "flagged"
	ReviewRemoved = "removed"
)
