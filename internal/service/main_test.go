package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/session"
	"inkwell/internal/storage"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []events.PostEvent
}

func (r *recordedEvents) Publish(_ context.Context, e events.PostEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	store    *storage.LocalStore
	users    repository.UserRepository
	posts    repository.PostRepository
	likes    repository.LikeRepository
	uploads  *UploadService
	sessions *session.Manager
	auth     *AuthService
	post     *PostService
	like     *LikeService
	events   *recordedEvents
}

func newFixture(t *testing.T, opts ...PostServiceOption) *fixture {
	t.Helper()
	cache.SetClient(nil)

	db := testutil.NewSQLiteDB(t)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		db:     db,
		store:  store,
		users:  repository.NewUserRepository(db),
		posts:  repository.NewPostRepository(db),
		likes:  repository.NewLikeRepository(db),
		events: &recordedEvents{},
	}
	f.uploads = NewUploadService(store, 1)
	f.uploads.now = func() time.Time { return time.Unix(1700000000, 0) }
	f.sessions = session.NewManager("test-secret-key-with-enough-length", time.Hour, f.users)
	f.auth = NewAuthService(f.users, NewPasswordHasher(HashSchemePBKDF2, 1000), f.sessions)
	f.post = NewPostService(f.posts, f.likes, f.uploads, f.events, opts...)
	f.like = NewLikeService(f.likes, f.events)
	return f
}

func (f *fixture) register(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), RegisterInput{Username: username, Password: "secret-" + username})
	require.NoError(t, err)
	return u
}
