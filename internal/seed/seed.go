// Package seed creates demo users, posts and likes for development databases.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Hasher produces stored password hashes.
type Hasher interface {
	Hash(password string) (string, error)
}

// Options controls how much data is generated.
type Options struct {
	Users           int
	Posts           int
	MaxLikesPerPost int
	MaxDays         int
	// Password is shared by every seeded account.
	Password string
	// Seed makes the generated content reproducible. Zero picks a random seed.
	Seed int64
}

// Summary counts what a run created.
type Summary struct {
	Users int
	Posts int
	Likes int
}

type Seeder struct {
	db     *gorm.DB
	hasher Hasher
	opts   Options
	faker  *gofakeit.Faker
	rng    *rand.Rand
	now    func() time.Time
}

func NewSeeder(db *gorm.DB, hasher Hasher, opts Options) *Seeder {
	if opts.Users <= 0 {
		opts.Users = 10
	}
	if opts.Posts < 0 {
		opts.Posts = 0
	}
	if opts.MaxLikesPerPost < 0 {
		opts.MaxLikesPerPost = 0
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 30
	}
	if opts.Password == "" {
		opts.Password = "password123"
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		db:     db,
		hasher: hasher,
		opts:   opts,
		faker:  gofakeit.New(seed),
		rng:    rand.New(rand.NewSource(seed)),
		now:    time.Now,
	}
}

// ClearAll removes every like, post and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Like{}, &models.Post{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Run creates users, then posts authored by them, then likes between them.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	posts, err := s.createPosts(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}
	likes, err := s.createLikes(ctx, users, posts)
	if err != nil {
		return nil, fmt.Errorf("seed likes: %w", err)
	}

	summary := &Summary{Users: len(users), Posts: len(posts), Likes: likes}
	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("users", summary.Users), slog.Int("posts", summary.Posts), slog.Int("likes", summary.Likes))
	return summary, nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]models.User, error) {
	hashed, err := s.hasher.Hash(s.opts.Password)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, s.opts.Users)
	users := make([]models.User, 0, s.opts.Users)
	for len(users) < s.opts.Users {
		name := s.username(len(users))
		if seen[name] {
			continue
		}
		seen[name] = true
		users = append(users, models.User{Username: name, Password: hashed})
	}

	if err := s.db.WithContext(ctx).CreateInBatches(&users, 100).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Seeder) username(i int) string {
	name := strings.ToLower(s.faker.Username())
	name = strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf && (r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return r
		}
		return -1
	}, name)
	suffix := fmt.Sprintf("%d", i)
	if room := validation.MaxUsernameLength - len(suffix); len(name) > room {
		name = name[:room]
	}
	return name + suffix
}

func (s *Seeder) createPosts(ctx context.Context, users []models.User) ([]models.Post, error) {
	if len(users) == 0 || s.opts.Posts == 0 {
		return nil, nil
	}

	posts := make([]models.Post, 0, s.opts.Posts)
	for i := 0; i < s.opts.Posts; i++ {
		author := users[s.rng.Intn(len(users))]
		posts = append(posts, models.Post{
			Title:    truncate(strings.TrimSuffix(s.faker.Sentence(4), "."), validation.MaxTitleLength),
			Author:   author.Username,
			Content:  s.faker.Paragraph(2, 4, 12, "\n\n"),
			PostDate: s.pastTime(),
		})
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&posts, 100).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Seeder) createLikes(ctx context.Context, users []models.User, posts []models.Post) (int, error) {
	if s.opts.MaxLikesPerPost == 0 || len(users) == 0 {
		return 0, nil
	}

	var likes []models.Like
	for _, p := range posts {
		n := s.rng.Intn(min(s.opts.MaxLikesPerPost, len(users)) + 1)
		for _, idx := range s.rng.Perm(len(users))[:n] {
			likes = append(likes, models.Like{UserID: users[idx].ID, PostID: p.ID})
		}
	}
	if len(likes) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&likes, 200).Error; err != nil {
		return 0, err
	}
	return len(likes), nil
}

func (s *Seeder) pastTime() time.Time {
	back := time.Duration(s.rng.Int63n(int64(s.opts.MaxDays) * int64(24*time.Hour)))
	return s.now().Add(-back).UTC().Truncate(time.Second)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}
