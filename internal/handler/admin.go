package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cinescope/api/internal/model"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

type DashboardStats struct {
	TotalUsers       int64            `json:"totalUsers"`
	NewUsers30d      int64            `json:"newUsers30d"`
	TotalReviews     int64            `json:"totalReviews"`
	ReviewsByStatus  map[string]int64 `json:"reviewsByStatus"`
	ActiveSessions   int64            `json:"activeSessions"`
	TopReviewed      []MovieCount     `json:"topReviewedMovies"`
	WatchlistedCount int64            `json:"watchlistedMovies"`
}

type MovieCount struct {
	MovieTitle string `json:"movieTitle"`
	Count      int64  `json:"count"`
}

// GetStats returns dashboard statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	var stats DashboardStats

	h.db.Model(&model.User{}).Count(&stats.TotalUsers)

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	h.db.Model(&model.User{}).Where("created_at > ?", thirtyDaysAgo).Count(&stats.NewUsers30d)

	h.db.Model(&model.Review{}).Count(&stats.TotalReviews)

	// Reviews by status
	stats.ReviewsByStatus = make(map[string]int64)
	type StatusCount struct {
		Status string
		Count  int64
	}
	var statusCounts []StatusCount
	h.db.Model(&model.Review{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts)
	for _, sc := range statusCounts {
		stats.ReviewsByStatus[sc.Status] = sc.Count
	}

	// Unrevoked, unexpired refresh tokens stand in for active sessions
	h.db.Model(&model.RefreshToken{}).
		Where("revoked_at IS NULL AND expires_at > ?", time.Now()).
		Count(&stats.ActiveSessions)

	h.db.Model(&model.Review{}).
		Select("movie_title, count(*) as count").
		Group("movie_title").
		Order("count DESC").
		Limit(10).
		Scan(&stats.TopReviewed)

	h.db.Model(&model.WatchlistItem{}).
		Distinct("tmdb_id").
		Count(&stats.WatchlistedCount)

	c.JSON(http.StatusOK, stats)
}

type UserListResponse struct {
	Data       []model.User `json:"data"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalCount int64        `json:"totalCount"`
	TotalPages int          `json:"totalPages"`
}

// ListUsers returns users with pagination and an optional role filter.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, limit := pagination(c)
	offset := (page - 1) * limit

	query := h.db.Model(&model.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var totalCount int64
	query.Count(&totalCount)

	var users []model.User
	query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users)

	c.JSON(http.StatusOK, UserListResponse{
		Data:       users,
		Page:       page,
		Limit:      limit,
		TotalCount: totalCount,
		TotalPages: int((totalCount + int64(limit) - 1) / int64(limit)),
	})
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user moderator admin"`
}

// UpdateUserRole changes a user's role. The change shows up in access
// tokens at the user's next refresh or login, not retroactively.
func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be user, moderator or admin"})
		return
	}

	var user model.User
	if err := h.db.First(&user, targetID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if callerID, exists := c.Get("userID"); exists && callerID.(int64) == targetID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot change your own role"})
		return
	}

	user.Role = req.Role
	user.UpdatedAt = time.Now()
	if err := h.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update role"})
		return
	}

	c.JSON(http.StatusOK, user)
}

type ModerateReviewRequest struct {
	Status string `json:"status" binding:"required,oneof=visible flagged removed"`
}

// ModerateReview sets a review's status. Moderators and admins only.
func (h *AdminHandler) ModerateReview(c *gin.Context) {
	reviewID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid review id"})
		return
	}

	var req ModerateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be visible, flagged or removed"})
		return
	}

	var review model.Review
	if err := h.db.First(&review, reviewID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}

	review.Status = req.Status
	review.UpdatedAt = time.Now()
	if err := h.db.Save(&review).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update review"})
		return
	}

	c.JSON(http.StatusOK, review)
}

// ListFlaggedReviews returns reviews awaiting moderation.
func (h *AdminHandler) ListFlaggedReviews(c *gin.Context) {
	page, limit := pagination(c)
	offset := (page - 1) * limit

	query := h.db.Model(&model.Review{}).Where("status = ?", model.ReviewFlagged)

	var totalCount int64
	query.Count(&totalCount)

	var reviews []model.Review
	query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&reviews)

	c.JSON(http.StatusOK, ReviewListResponse{
		Data:       reviews,
		Page:       page,
		Limit:      limit,
		TotalCount: totalCount,
		TotalPages: int((totalCount + int64(limit) - 1) / int64(limit)),
	})
}
