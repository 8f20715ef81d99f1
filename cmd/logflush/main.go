package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/cinescope/api/internal/config"
	"github.com/cinescope/api/internal/database"
	"github.com/cinescope/api/internal/model"
	"github.com/cinescope/api/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	// Parse command line flags
	retentionDays := flag.Int("retention-days", 30, "Delete request logs older than this many days")
	pruneTokens := flag.Bool("prune-tokens", true, "Delete expired refresh tokens")
	dryRun := flag.Bool("dry-run", false, "Show what would be deleted without deleting")
	flag.Parse()

	_ = godotenv.Load()

	startTime := time.Now()
	log.Println("Starting log maintenance job...")

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migration to ensure tables exist
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -*retentionDays)

	if *dryRun {
		var logCount int64
		db.Model(&model.RequestLog{}).Where("created_at < ?", cutoff).Count(&logCount)
		var tokenCount int64
		db.Model(&model.RefreshToken{}).Where("expires_at < ?", time.Now()).Count(&tokenCount)
		log.Printf("[DRY RUN] Would delete %d request logs older than %s", logCount, cutoff.Format("2006-01-02"))
		log.Printf("[DRY RUN] Would delete %d expired refresh tokens", tokenCount)
		log.Println("[DRY RUN] No changes made")
		return
	}

	result := db.Where("created_at < ?", cutoff).Delete(&model.RequestLog{})
	if result.Error != nil {
		log.Fatalf("Failed to prune request logs: %v", result.Error)
	}
	log.Printf("Deleted %d request logs older than %s", result.RowsAffected, cutoff.Format("2006-01-02"))

	if *pruneTokens {
		// Expired tokens fail validation anyway; this just keeps the table small
		tokens := store.NewRefreshTokenStore(db)
		deleted, err := tokens.DeleteExpired(ctx, time.Now())
		if err != nil {
			log.Fatalf("Failed to prune refresh tokens: %v", err)
		}
		log.Printf("Deleted %d expired refresh tokens", deleted)
	}

	elapsed := time.Since(startTime)
	log.Printf("Log maintenance complete in %v", elapsed)
}
