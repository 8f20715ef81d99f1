package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cinescope/api/internal/auth"
	"github.com/cinescope/api/internal/cache"
	"github.com/cinescope/api/internal/client"
	"github.com/cinescope/api/internal/config"
	"github.com/cinescope/api/internal/database"
	"github.com/cinescope/api/internal/handler"
	"github.com/cinescope/api/internal/limiter"
	"github.com/cinescope/api/internal/logbuffer"
	"github.com/cinescope/api/internal/middleware"
	"github.com/cinescope/api/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis cache
	var redisCache *cache.RedisCache
	redisCache, err = cache.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		// Continue without Redis (fail-open: no response cache, no rate limiting)
		redisCache = nil
	}

	// Token signing and session orchestration
	issuer := auth.NewTokenIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := auth.NewService(store.NewUserStore(db), store.NewRefreshTokenStore(db), issuer)

	// Rate limiter (redis fixed-window counters)
	var rateLimiter *limiter.Limiter
	if cfg.RateLimitEnabled && redisCache != nil {
		rateLimiter = limiter.NewLimiter(redisCache)
	}

	// Batched request-log writer
	var logWriter *logbuffer.Writer
	if cfg.RequestLogEnabled {
		logWriter = logbuffer.NewWriter(logbuffer.NewGormSink(db), logbuffer.WriterConfig{})
		go logWriter.Start(ctx)
	}

	googleConfig := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}

	// Initialize handlers
	tmdbClient := client.NewTMDBClient(cfg.TMDBBaseURL, cfg.TMDBAPIKey)
	authHandler := handler.NewAuthHandler(authService, googleConfig, cfg.FrontendURL)
	movieHandler := handler.NewMovieHandler(db, redisCache, tmdbClient)
	watchlistHandler := handler.NewWatchlistHandler(db)
	reviewHandler := handler.NewReviewHandler(db)
	adminHandler := handler.NewAdminHandler(db)

	// Setup router
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", cfg.FrontendURL)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLogMiddleware(logWriter))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api")
	{
		// Auth
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", middleware.RateLimitMiddleware(rateLimiter, "register"), authHandler.Register)
			authRoutes.POST("/login", middleware.RateLimitMiddleware(rateLimiter, "login"), authHandler.Login)
			authRoutes.POST("/logout", authHandler.Logout)
			authRoutes.POST("/refresh", middleware.RateLimitMiddleware(rateLimiter, "refresh"), authHandler.Refresh)
			authRoutes.GET("/me", middleware.AuthMiddleware(issuer), authHandler.Me)
			authRoutes.PUT("/me", middleware.AuthMiddleware(issuer), authHandler.UpdateMe)
			authRoutes.GET("/google", authHandler.GoogleAuth)
			authRoutes.GET("/google/callback", authHandler.GoogleCallback)
		}

		// Movies (public, optionally authenticated for request logs)
		movies := api.Group("/movies", middleware.OptionalAuthMiddleware(issuer))
		{
			movies.GET("/search", middleware.RateLimitMiddleware(rateLimiter, "search"), movieHandler.Search)
			movies.GET("/popular", movieHandler.Popular)
			movies.GET("/top-rated", movieHandler.TopRated)
			movies.GET("/now-playing", movieHandler.NowPlaying)
			movies.GET("/genres", movieHandler.Genres)
			movies.GET("/:id", movieHandler.Details)
			movies.GET("/:id/reviews", reviewHandler.ListForMovie)
		}

		// Watchlist
		watchlist := api.Group("/watchlist", middleware.AuthMiddleware(issuer))
		{
			watchlist.GET("", watchlistHandler.List)
			watchlist.POST("", watchlistHandler.Add)
			watchlist.GET("/:id", watchlistHandler.Check)
			watchlist.DELETE("/:id", watchlistHandler.Remove)
		}

		// Reviews
		reviews := api.Group("/reviews", middleware.AuthMiddleware(issuer))
		{
			reviews.GET("/mine", reviewHandler.ListMine)
			reviews.POST("", middleware.RateLimitMiddleware(rateLimiter, "review"), reviewHandler.Create)
			reviews.PUT("/:id", reviewHandler.Update)
			reviews.DELETE("/:id", reviewHandler.Delete)
		}

		// Admin and moderation
		admin := api.Group("/admin")
		{
			admin.GET("/stats", middleware.AdminMiddleware(issuer), adminHandler.GetStats)
			admin.GET("/users", middleware.AdminMiddleware(issuer), adminHandler.ListUsers)
			admin.PUT("/users/:id/role", middleware.AdminMiddleware(issuer), adminHandler.UpdateUserRole)

			moderate := middleware.RequireRole(issuer, "admin", "moderator")
			admin.GET("/reviews/flagged", moderate, adminHandler.ListFlaggedReviews)
			admin.PUT("/reviews/:id/status", moderate, adminHandler.ModerateReview)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("API server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}

	// Flush whatever the request-log writer is still holding
	if logWriter != nil {
		logWriter.Stop()
	}
}
