package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCheckRateLimit(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := CheckRateLimit(ctx, rdb, "login", "ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.True(t, mr.TTL("rl:login:ip:1.2.3.4") > 0)

	mr.FastForward(2 * time.Minute)
	allowed, err = CheckRateLimit(ctx, rdb, "login", "ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckRateLimit_NilRedis(t *testing.T) {
	allowed, err := CheckRateLimit(context.Background(), nil, "login", "ip:1", 1, time.Minute)
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	_, rdb := newTestRedis(t)

	tests := []struct {
		name     string
		cfg      RateLimitConfig
		requests int
		expected []int
	}{
		{
			name:     "limits in production",
			cfg:      RateLimitConfig{Redis: rdb, Resource: "signin", Limit: 1, Window: time.Minute, Env: "production"},
			requests: 2,
			expected: []int{http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:     "bypassed in development",
			cfg:      RateLimitConfig{Redis: rdb, Resource: "dev", Limit: 1, Window: time.Minute, Env: "development"},
			requests: 3,
			expected: []int{http.StatusOK, http.StatusOK, http.StatusOK},
		},
		{
			name:     "fail open without redis",
			cfg:      RateLimitConfig{Resource: "open", Limit: 1, Window: time.Minute, Env: "production"},
			requests: 2,
			expected: []int{http.StatusOK, http.StatusOK},
		},
		{
			name:     "fail closed without redis",
			cfg:      RateLimitConfig{Resource: "closed", Limit: 1, Window: time.Minute, Env: "production", Policy: FailClosed},
			requests: 1,
			expected: []int{http.StatusServiceUnavailable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", RateLimit(tt.cfg), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			for i := 0; i < tt.requests; i++ {
				resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
				require.NoError(t, err)
				assert.Equal(t, tt.expected[i], resp.StatusCode, "request %d", i+1)
			}
		})
	}
}
