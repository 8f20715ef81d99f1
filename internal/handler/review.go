package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cinescope/api/internal/model"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ReviewHandler struct {
	db *gorm.DB
}

func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{db: db}
}

type CreateReviewRequest struct {
	TMDBID     int64  `json:"tmdbId" binding:"required,gt=0"`
	MovieTitle string `json:"movieTitle" binding:"required,max=255"`
	Rating     int    `json:"rating" binding:"required,gte=1,lte=10"`
	Body       string `json:"body" binding:"max=5000"`
}

type UpdateReviewRequest struct {
	Rating int    `json:"rating" binding:"required,gte=1,lte=10"`
	Body   string `json:"body" binding:"max=5000"`
}

type ReviewListResponse struct {
	Data       []model.Review `json:"data"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalCount int64          `json:"totalCount"`
	TotalPages int            `json:"totalPages"`
}

// Create posts a review. One review per user per movie.
func (h *ReviewHandler) Create(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tmdbId, movieTitle and a rating between 1 and 10 are required"})
		return
	}

	var existing model.Review
	err := h.db.Where("user_id = ? AND tmdb_id = ?", userID, req.TMDBID).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "you have already reviewed this movie"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save review"})
		return
	}

	review := model.Review{
		UserID:     userID.(int64),
		TMDBID:     req.TMDBID,
		MovieTitle: req.MovieTitle,
		Rating:     req.Rating,
		Body:       req.Body,
		Status:     model.ReviewVisible,
	}
	if err := h.db.Create(&review).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save review"})
		return
	}

	c.JSON(http.StatusCreated, review)
}

// ListForMovie returns visible reviews for a movie, newest first.
func (h *ReviewHandler) ListForMovie(c *gin.Context) {
	tmdbID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || tmdbID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid movie id"})
		return
	}

	page, limit := pagination(c)
	offset := (page - 1) * limit

	query := h.db.Model(&model.Review{}).Where("tmdb_id = ? AND status = ?", tmdbID, model.ReviewVisible)

	var totalCount int64
	query.Count(&totalCount)

	var reviews []model.Review
	query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&reviews)

	c.JSON(http.StatusOK, ReviewListResponse{
		Data:       reviews,
		Page:       page,
		Limit:      limit,
		TotalCount: totalCount,
		TotalPages: int((totalCount + int64(limit) - 1) / int64(limit)),
	})
}

// ListMine returns all of the user's own reviews, whatever their status.
func (h *ReviewHandler) ListMine(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, limit := pagination(c)
	offset := (page - 1) * limit

	query := h.db.Model(&model.Review{}).Where("user_id = ?", userID)

	var totalCount int64
	query.Count(&totalCount)

	var reviews []model.Review
	query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&reviews)

	c.JSON(http.StatusOK, ReviewListResponse{
		Data:       reviews,
		Page:       page,
		Limit:      limit,
		TotalCount: totalCount,
		TotalPages: int((totalCount + int64(limit) - 1) / int64(limit)),
	})
}

// Update edits the caller's own review.
func (h *ReviewHandler) Update(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	reviewID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid review id"})
		return
	}

	var req UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a rating between 1 and 10 is required"})
		return
	}

	var review model.Review
	if err := h.db.First(&review, reviewID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}
	if review.UserID != userID.(int64) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your review"})
		return
	}

	review.Rating = req.Rating
	review.Body = req.Body
	review.UpdatedAt = time.Now()
	if err := h.db.Save(&review).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save review"})
		return
	}

	c.JSON(http.StatusOK, review)
}

// Delete removes the caller's own review.
func (h *ReviewHandler) Delete(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	reviewID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid review id"})
		return
	}

	var review model.Review
	if err := h.db.First(&review, reviewID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}
	if review.UserID != userID.(int64) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your review"})
		return
	}

	if err := h.db.Delete(&review).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete review"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "review deleted"})
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
