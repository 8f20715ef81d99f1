package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cinescope/api/internal/cache"
	"github.com/cinescope/api/internal/client"
	"github.com/cinescope/api/internal/middleware"
	"github.com/cinescope/api/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	listingCacheTTL = 5 * time.Minute
	detailsCacheTTL = 24 * time.Hour

	// DB rows for movie details go stale after this and get refetched
	detailsMaxAge = 7 * 24 * time.Hour
)

type MovieHandler struct {
	db    *gorm.DB
	cache *cache.RedisCache
	tmdb  *client.TMDBClient
}

func NewMovieHandler(db *gorm.DB, redisCache *cache.RedisCache, tmdb *client.TMDBClient) *MovieHandler {
	return &MovieHandler{
		db:    db,
		cache: redisCache,
		tmdb:  tmdb,
	}
}

func (h *MovieHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	page := parsePage(c)

	cacheKey := cache.MovieKey("search", query, "page="+strconv.Itoa(page))
	if h.serveFromCache(c, cacheKey, "search") {
		return
	}

	h.proxyListing(c, cacheKey, "search", func() (map[string]interface{}, error) {
		return h.tmdb.SearchMovies(query, page)
	})
}

func (h *MovieHandler) Popular(c *gin.Context) {
	page := parsePage(c)
	cacheKey := cache.MovieKey("popular", "page="+strconv.Itoa(page))
	if h.serveFromCache(c, cacheKey, "popular") {
		return
	}
	h.proxyListing(c, cacheKey, "popular", func() (map[string]interface{}, error) {
		return h.tmdb.Popular(page)
	})
}

func (h *MovieHandler) TopRated(c *gin.Context) {
	page := parsePage(c)
	cacheKey := cache.MovieKey("top_rated", "page="+strconv.Itoa(page))
	if h.serveFromCache(c, cacheKey, "top_rated") {
		return
	}
	h.proxyListing(c, cacheKey, "top_rated", func() (map[string]interface{}, error) {
		return h.tmdb.TopRated(page)
	})
}

func (h *MovieHandler) NowPlaying(c *gin.Context) {
	page := parsePage(c)
	cacheKey := cache.MovieKey("now_playing", "page="+strconv.Itoa(page))
	if h.serveFromCache(c, cacheKey, "now_playing") {
		return
	}
	h.proxyListing(c, cacheKey, "now_playing", func() (map[string]interface{}, error) {
		return h.tmdb.NowPlaying(page)
	})
}

func (h *MovieHandler) Genres(c *gin.Context) {
	cacheKey := cache.MovieKey("genres")
	if h.serveFromCache(c, cacheKey, "genres") {
		return
	}
	h.proxyListing(c, cacheKey, "genres", func() (map[string]interface{}, error) {
		return h.tmdb.Genres()
	})
}

// Details serves a movie's detail payload: Redis first, then the local
// movies table, then TMDB. Fresh upstream payloads are upserted locally so
// review and watchlist pages survive upstream outages.
func (h *MovieHandler) Details(c *gin.Context) {
	tmdbID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || tmdbID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid movie id"})
		return
	}

	cacheKey := cache.MovieKey("details", strconv.FormatInt(tmdbID, 10))
	if h.serveFromCache(c, cacheKey, "details") {
		return
	}

	// 2. Check the local movie cache table
	var movie model.Movie
	result := h.db.Where("tmdb_id = ?", tmdbID).First(&movie)
	if result.Error == nil && time.Since(movie.FetchedAt) < detailsMaxAge {
		middleware.RecordMovieLookup(true, "details")
		h.storeInCache(c, cacheKey, []byte(movie.Details), detailsCacheTTL)
		c.Data(http.StatusOK, "application/json", movie.Details)
		return
	}

	// 3. Fetch from TMDB
	start := time.Now()
	details, err := h.tmdb.MovieDetails(tmdbID)
	middleware.RecordTMDBCall(err == nil, time.Since(start))
	if err != nil {
		// Serve a stale local row over an error page
		if result.Error == nil {
			log.Printf("TMDB details fetch failed, serving stale row for %d: %v", tmdbID, err)
			c.Data(http.StatusOK, "application/json", movie.Details)
			return
		}
		h.upstreamError(c, err)
		return
	}
	middleware.RecordMovieLookup(false, "details")

	payload, err := json.Marshal(details)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode movie details"})
		return
	}

	row := model.Movie{
		TMDBID:      tmdbID,
		Title:       stringField(details, "title"),
		ReleaseDate: stringField(details, "release_date"),
		Genres:      pq.StringArray(genreNames(details)),
		Details:     datatypes.JSON(payload),
		FetchedAt:   time.Now(),
	}
	err = h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tmdb_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "release_date", "genres", "details", "fetched_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		log.Printf("Failed to upsert movie %d: %v", tmdbID, err)
	}

	h.storeInCache(c, cacheKey, payload, detailsCacheTTL)
	c.Data(http.StatusOK, "application/json", payload)
}

func (h *MovieHandler) proxyListing(c *gin.Context, cacheKey, endpoint string, fetch func() (map[string]interface{}, error)) {
	start := time.Now()
	result, err := fetch()
	middleware.RecordTMDBCall(err == nil, time.Since(start))
	if err != nil {
		h.upstreamError(c, err)
		return
	}
	middleware.RecordMovieLookup(false, endpoint)

	if payload, err := json.Marshal(result); err == nil {
		h.storeInCache(c, cacheKey, payload, listingCacheTTL)
	}

	c.JSON(http.StatusOK, result)
}

func (h *MovieHandler) serveFromCache(c *gin.Context, cacheKey, endpoint string) bool {
	if h.cache == nil {
		return false
	}
	cached, err := h.cache.Get(c.Request.Context(), cacheKey)
	if err != nil {
		return false
	}
	middleware.RecordMovieLookup(true, endpoint)
	c.Data(http.StatusOK, "application/json", cached)
	return true
}

func (h *MovieHandler) storeInCache(c *gin.Context, cacheKey string, payload []byte, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(c.Request.Context(), cacheKey, payload, ttl); err != nil {
		log.Printf("Failed to cache %s: %v", cacheKey, err)
	}
}

func (h *MovieHandler) upstreamError(c *gin.Context, err error) {
	log.Printf("TMDB call failed: %v", err)

	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "movie service rate limit exceeded, please retry shortly"})
			return
		case http.StatusNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "movie not found"})
			return
		}
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "movie service unavailable"})
}

func parsePage(c *gin.Context) int {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 || page > 500 {
		page = 1
	}
	return page
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func genreNames(details map[string]interface{}) []string {
	raw, ok := details["genres"].([]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, g := range raw {
		if genre, ok := g.(map[string]interface{}); ok {
			if name, ok := genre["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	return names
}
