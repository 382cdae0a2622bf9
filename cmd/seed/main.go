// Command seed fills a development database with demo users, posts and likes.
package main

import (
	"context"
	"flag"
	"log"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
	"inkwell/internal/service"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numPosts := flag.Int("posts", 40, "Number of posts to create")
	maxLikes := flag.Int("likes", 5, "Maximum likes per post")
	password := flag.String("password", "password123", "Password for every seeded account")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	shouldClean := flag.Bool("clean", true, "Remove existing users, posts and likes first")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	ctx := context.Background()
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		log.Fatalf("Schema setup failed: %v", err)
	}

	hasher := service.NewPasswordHasher(cfg.PasswordHashScheme, cfg.PBKDF2Iterations)
	s := seed.NewSeeder(db, hasher, seed.Options{
		Users:           *numUsers,
		Posts:           *numPosts,
		MaxLikesPerPost: *maxLikes,
		Password:        *password,
		Seed:            *randSeed,
	})

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	summary, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d users, %d posts, %d likes", summary.Users, summary.Posts, summary.Likes)
}
