// Package session issues and resolves the signed cookie that identifies a logged in user.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	issuer   = "inkwell"
	audience = "inkwell-web"
)

var (
	// ErrInvalidSession is returned for tokens that fail signature or claim checks.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrRevoked is returned for sessions ended by logout.
	ErrRevoked = errors.New("session has been revoked")
)

// UserLookup resolves the user a session belongs to.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// Claims is the JWT payload stored in the session cookie.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager signs, parses and revokes sessions.
type Manager struct {
	secret []byte
	ttl    time.Duration
	users  UserLookup
	redis  func() *redis.Client
	now    func() time.Time
}

// NewManager returns a Manager signing with secret. users may be nil, in which case
// the username embedded in the token is trusted.
func NewManager(secret string, ttl time.Duration, users UserLookup) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
		redis:  cache.GetClient,
		now:    time.Now,
	}
}

// TTL is the lifetime of newly issued sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a signed session token for the user.
func (m *Manager) Issue(userID uint, username string) (string, *middleware.SessionUser, error) {
	if len(m.secret) == 0 {
		return "", nil, errors.New("session secret not configured")
	}

	now := m.now()
	exp := now.Add(m.ttl)
	jti := uuid.NewString()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return token, &middleware.SessionUser{
		ID:        userID,
		Username:  username,
		SessionID: jti,
		ExpiresAt: exp,
	}, nil
}

// Parse validates the token and returns the session it carries without consulting storage.
func (m *Manager) Parse(token string) (*middleware.SessionUser, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || id == 0 || claims.ID == "" {
		return nil, ErrInvalidSession
	}

	return &middleware.SessionUser{
		ID:        uint(id),
		Username:  claims.Username,
		SessionID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Resolve parses the token, rejects revoked sessions and confirms the user still exists.
func (m *Manager) Resolve(ctx context.Context, token string) (*middleware.SessionUser, error) {
	su, err := m.Parse(token)
	if err != nil {
		return nil, err
	}

	revoked, err := m.isRevoked(ctx, su.SessionID)
	if err != nil {
		// Revocation is best-effort when Redis is unhealthy.
		middleware.Logger.WarnContext(ctx, "session revocation check failed", slog.String("error", err.Error()))
	}
	if revoked {
		return nil, ErrRevoked
	}

	if m.users != nil {
		user, err := m.users.GetByID(ctx, su.ID)
		if err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				return nil, ErrInvalidSession
			}
			return nil, err
		}
		su.Username = user.Username
	}
	return su, nil
}

// Revoke blacklists the session until its natural expiry.
func (m *Manager) Revoke(ctx context.Context, su *middleware.SessionUser) error {
	if su == nil || su.SessionID == "" {
		return nil
	}
	rdb := m.redis()
	if rdb == nil {
		return nil
	}
	ttl := su.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return rdb.Set(ctx, cache.SessionRevokedKey(su.SessionID), "1", ttl).Err()
}

func (m *Manager) isRevoked(ctx context.Context, jti string) (bool, error) {
	rdb := m.redis()
	if rdb == nil {
		return false, nil
	}
	n, err := rdb.Exists(ctx, cache.SessionRevokedKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
