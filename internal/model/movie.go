package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Movie is a local cache row for a TMDB movie detail payload. Details is the
// raw upstream JSON; Genres is flattened out for querying.
type Movie struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TMDBID      int64          `gorm:"column:tmdb_id;not null;uniqueIndex" json:"tmdbId"`
	Title       string         `gorm:"not null;size:255" json:"title"`
	ReleaseDate string         `gorm:"size:10" json:"releaseDate"`
	Genres      pq.StringArray `gorm:"type:text[]" json:"genres"`
	Details     datatypes.JSON `json:"details"`
	FetchedAt   time.Time      `json:"fetchedAt"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (Movie) TableName() string {
	return "movies"
}
