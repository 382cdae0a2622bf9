package session

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890"

type userMap map[uint]*models.User

func (u userMap) GetByID(_ context.Context, id uint) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, models.NewNotFoundError("User", id)
}

func newTestManager(t *testing.T, users UserLookup) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := NewManager(testSecret, time.Hour, users)
	m.redis = func() *redis.Client { return rdb }
	return m, mr
}

func TestIssueAndResolve(t *testing.T) {
	m, _ := newTestManager(t, userMap{3: {ID: 3, Username: "alice"}})

	token, issued, err := m.Issue(3, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.SessionID)

	su, err := m.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(3), su.ID)
	assert.Equal(t, "alice", su.Username)
	assert.Equal(t, issued.SessionID, su.SessionID)
}

func TestResolve_Rejects(t *testing.T) {
	m, _ := newTestManager(t, userMap{3: {ID: 3, Username: "alice"}})
	ctx := context.Background()

	t.Run("wrong secret", func(t *testing.T) {
		other := NewManager("another-secret-another-secret-000", time.Hour, nil)
		token, _, err := other.Issue(3, "alice")
		require.NoError(t, err)
		_, err = m.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewManager(testSecret, time.Minute, nil)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := past.Issue(3, "alice")
		require.NoError(t, err)
		_, err = m.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject: "3", Issuer: issuer, Audience: jwt.ClaimStrings{audience}, ID: "x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = m.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("unknown user", func(t *testing.T) {
		token, _, err := m.Issue(99, "ghost")
		require.NoError(t, err)
		_, err = m.Resolve(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Resolve(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidSession)
	})
}

func TestRevoke(t *testing.T) {
	m, mr := newTestManager(t, nil)
	ctx := context.Background()

	token, su, err := m.Issue(5, "bob")
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, su))

	assert.True(t, mr.Exists("blacklist:"+su.SessionID))
	assert.True(t, mr.TTL("blacklist:"+su.SessionID) > 0)

	_, err = m.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrRevoked)

	// Other sessions of the same user stay valid.
	other, _, err := m.Issue(5, "bob")
	require.NoError(t, err)
	_, err = m.Resolve(ctx, other)
	assert.NoError(t, err)
}

func TestRevoke_WithoutRedis(t *testing.T) {
	m := NewManager(testSecret, time.Hour, nil)
	m.redis = func() *redis.Client { return nil }

	token, su, err := m.Issue(5, "bob")
	require.NoError(t, err)
	assert.NoError(t, m.Revoke(context.Background(), su))

	// Without a store the cookie removal is the only logout mechanism.
	_, err = m.Resolve(context.Background(), token)
	assert.NoError(t, err)
}

func TestIssue_RequiresSecret(t *testing.T) {
	_, _, err := NewManager("", time.Hour, nil).Issue(1, "a")
	assert.Error(t, err)
}
