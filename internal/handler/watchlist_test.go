package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cinescope/api/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB returns an in-memory database with the handler tables
// migrated. Single connection, so every query sees the same database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Review{},
		&model.WatchlistItem{},
	))
	return db
}

// actingAs stands in for the auth middleware and binds the request to a
// fixed user id.
func actingAs(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

func serveJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func watchlistRouter(db *gorm.DB, userID int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWatchlistHandler(db)
	r := gin.New()
	g := r.Group("/api/watchlist", actingAs(userID))
	g.GET("", h.List)
	g.POST("", h.Add)
	g.GET("/:id", h.Check)
	g.DELETE("/:id", h.Remove)
	return r
}

func TestWatchlistAdd_ReAddRefreshesSnapshot(t *testing.T) {
	db := openTestDB(t)
	r := watchlistRouter(db, 1)

	first := serveJSON(t, r, http.MethodPost, "/api/watchlist", gin.H{
		"tmdbId": 603, "title": "The Matrix", "posterPath": "/old.jpg",
	})
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := serveJSON(t, r, http.MethodPost, "/api/watchlist", gin.H{
		"tmdbId": 603, "title": "The Matrix", "posterPath": "/new.jpg",
	})
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())

	// Still one row, carrying the refreshed snapshot
	var count int64
	db.Model(&model.WatchlistItem{}).Where("user_id = ? AND tmdb_id = ?", 1, 603).Count(&count)
	assert.Equal(t, int64(1), count)

	var item model.WatchlistItem
	require.NoError(t, db.Where("user_id = ? AND tmdb_id = ?", 1, 603).First(&item).Error)
	assert.Contains(t, string(item.Snapshot), "/new.jpg")
	assert.NotContains(t, string(item.Snapshot), "/old.jpg")
}

func TestWatchlistList_ScopedToUser(t *testing.T) {
	db := openTestDB(t)

	mine := watchlistRouter(db, 1)
	theirs := watchlistRouter(db, 2)

	require.Equal(t, http.StatusCreated, serveJSON(t, mine, http.MethodPost, "/api/watchlist", gin.H{
		"tmdbId": 603, "title": "The Matrix",
	}).Code)
	require.Equal(t, http.StatusCreated, serveJSON(t, theirs, http.MethodPost, "/api/watchlist", gin.H{
		"tmdbId": 27205, "title": "Inception",
	}).Code)

	w := serveJSON(t, mine, http.MethodGet, "/api/watchlist", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp WatchlistResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(603), resp.Data[0].TMDBID)

	check := serveJSON(t, mine, http.MethodGet, "/api/watchlist/27205", nil)
	require.Equal(t, http.StatusOK, check.Code)
	assert.Contains(t, check.Body.String(), `"onWatchlist":false`)
}

func TestWatchlistRemove_Idempotent(t *testing.T) {
	db := openTestDB(t)
	r := watchlistRouter(db, 1)

	require.Equal(t, http.StatusCreated, serveJSON(t, r, http.MethodPost, "/api/watchlist", gin.H{
		"tmdbId": 603, "title": "The Matrix",
	}).Code)

	first := serveJSON(t, r, http.MethodDelete, "/api/watchlist/603", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), `"removed":true`)

	// Removing an absent movie still succeeds
	second := serveJSON(t, r, http.MethodDelete, "/api/watchlist/603", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"removed":false`)
}
