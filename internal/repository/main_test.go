package repository

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	cache.SetClient(nil)
	return testutil.NewSQLiteDB(t)
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Password: "pbkdf2:sha256:1$salt$00"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), u))
	return u
}

func createPost(t *testing.T, db *gorm.DB, title string, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{Title: title, Author: "alice", Content: title + " body", PostDate: at}
	require.NoError(t, NewPostRepository(db).Create(context.Background(), p))
	return p
}
