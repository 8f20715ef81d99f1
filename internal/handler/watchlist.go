package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cinescope/api/internal/model"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WatchlistHandler struct {
	db *gorm.DB
}

func NewWatchlistHandler(db *gorm.DB) *WatchlistHandler {
	return &WatchlistHandler{db: db}
}

type AddWatchlistRequest struct {
	TMDBID      int64  `json:"tmdbId" binding:"required,gt=0"`
	Title       string `json:"title" binding:"required,max=255"`
	PosterPath  string `json:"posterPath"`
	ReleaseDate string `json:"releaseDate"`
}

type WatchlistResponse struct {
	Data       []model.WatchlistItem `json:"data"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalCount int64                 `json:"totalCount"`
	TotalPages int                   `json:"totalPages"`
}

// Add pins a movie to the watchlist. Re-adding an already-pinned movie
// refreshes the snapshot instead of failing.
func (h *WatchlistHandler) Add(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req AddWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tmdbId and title are required"})
		return
	}

	snapshot, _ := json.Marshal(gin.H{
		"title":       req.Title,
		"posterPath":  req.PosterPath,
		"releaseDate": req.ReleaseDate,
	})

	item := model.WatchlistItem{
		UserID:   userID.(int64),
		TMDBID:   req.TMDBID,
		Snapshot: datatypes.JSON(snapshot),
	}
	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "tmdb_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"snapshot"}),
	}).Create(&item).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update watchlist"})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// List returns the user's watchlist, newest first, paginated.
func (h *WatchlistHandler) List(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var totalCount int64
	h.db.Model(&model.WatchlistItem{}).Where("user_id = ?", userID).Count(&totalCount)

	var items []model.WatchlistItem
	h.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items)

	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, WatchlistResponse{
		Data:       items,
		Page:       page,
		Limit:      limit,
		TotalCount: totalCount,
		TotalPages: totalPages,
	})
}

// Check reports whether a movie is on the user's watchlist.
func (h *WatchlistHandler) Check(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tmdbID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || tmdbID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid movie id"})
		return
	}

	var count int64
	h.db.Model(&model.WatchlistItem{}).
		Where("user_id = ? AND tmdb_id = ?", userID, tmdbID).
		Count(&count)

	c.JSON(http.StatusOK, gin.H{"onWatchlist": count > 0})
}

// Remove unpins a movie. Removing an absent movie succeeds.
func (h *WatchlistHandler) Remove(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tmdbID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || tmdbID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid movie id"})
		return
	}

	result := h.db.Where("user_id = ? AND tmdb_id = ?", userID, tmdbID).Delete(&model.WatchlistItem{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update watchlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "removed from watchlist", "removed": result.RowsAffected > 0})
}
