package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/cinescope/api/internal/config"
	"github.com/cinescope/api/internal/database"
	"github.com/cinescope/api/internal/model"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	username := flag.String("username", "admin", "Admin username")
	email := flag.String("email", "", "Admin email (falls back to ADMIN_EMAIL)")
	password := flag.String("password", "", "Admin password (falls back to ADMIN_PASSWORD)")
	demo := flag.Bool("demo", false, "Also seed a handful of demo movies")
	flag.Parse()

	_ = godotenv.Load()

	adminEmail := *email
	if adminEmail == "" {
		adminEmail = os.Getenv("ADMIN_EMAIL")
	}
	adminPassword := *password
	if adminPassword == "" {
		adminPassword = os.Getenv("ADMIN_PASSWORD")
	}
	if adminEmail == "" || adminPassword == "" {
		log.Fatal("Admin email and password are required (flags or ADMIN_EMAIL/ADMIN_PASSWORD)")
	}

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migration
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	inserted, err := seedAdmin(db, *username, adminEmail, adminPassword)
	if err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}

	if inserted {
		log.Printf("Seeded admin user %s <%s>", *username, adminEmail)
	} else {
		log.Printf("Admin user %s already exists, nothing to do", adminEmail)
	}

	if *demo {
		added, skipped := seedDemoMovies(db)
		log.Printf("Demo movies: inserted=%d, skipped=%d", added, skipped)
	}
}

type demoMovie struct {
	tmdbID      int64
	title       string
	releaseDate string
	genres      []string
}

var demoMovies = []demoMovie{
	{603, "The Matrix", "1999-03-31", []string{"Action", "Science Fiction"}},
	{27205, "Inception", "2010-07-16", []string{"Action", "Science Fiction", "Adventure"}},
	{680, "Pulp Fiction", "1994-09-10", []string{"Thriller", "Crime"}},
	{155, "The Dark Knight", "2008-07-16", []string{"Drama", "Action", "Crime"}},
	{550, "Fight Club", "1999-10-15", []string{"Drama"}},
	{278, "The Shawshank Redemption", "1994-09-23", []string{"Drama", "Crime"}},
	{438631, "Dune", "2021-09-15", []string{"Science Fiction", "Adventure"}},
	{120, "The Lord of the Rings: The Fellowship of the Ring", "2001-12-18", []string{"Adventure", "Fantasy", "Action"}},
}

func seedDemoMovies(db *gorm.DB) (inserted int, skipped int) {
	for _, m := range demoMovies {
		result := db.Exec(`
			INSERT INTO movies (tmdb_id, title, release_date, genres, fetched_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, NOW(), NOW(), NOW())
			ON CONFLICT (tmdb_id) DO NOTHING
		`, m.tmdbID, m.title, m.releaseDate, pq.StringArray(m.genres))

		if result.Error != nil {
			log.Printf("Error inserting movie %s: %v", m.title, result.Error)
			skipped++
			continue
		}
		if result.RowsAffected == 0 {
			skipped++
		} else {
			inserted++
		}
	}
	return inserted, skipped
}

func seedAdmin(db *gorm.DB, username, email, password string) (bool, error) {
	var count int64
	if err := db.Model(&model.User{}).Where("lower(email) = lower(?)", email).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}

	user := model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&user).Error; err != nil {
		return false, err
	}
	return true, nil
}
