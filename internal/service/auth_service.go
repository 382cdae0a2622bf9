// Package service holds the application's business rules between handlers and repositories.
package service

import (
	"context"
	"strings"
	"sync"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

// SessionIssuer creates and ends login sessions.
type SessionIssuer interface {
	Issue(userID uint, username string) (string, *middleware.SessionUser, error)
	Revoke(ctx context.Context, su *middleware.SessionUser) error
}

type RegisterInput struct {
	Username string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

// LoginResult carries the session token to set as a cookie.
type LoginResult struct {
	Token   string
	Session *middleware.SessionUser
	User    *models.User
}

type AuthService struct {
	users    repository.UserRepository
	hasher   *PasswordHasher
	sessions SessionIssuer

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users repository.UserRepository, hasher *PasswordHasher, sessions SessionIssuer) *AuthService {
	return &AuthService{users: users, hasher: hasher, sessions: sessions}
}

// Register creates an account. Duplicate usernames surface as a CONFLICT error from the unique index.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	ctx, span := observability.StartSpan(ctx, "service.auth.Register")
	var err error
	defer func() { span.End(err) }()

	username := strings.TrimSpace(in.Username)
	if err = validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err = validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err = s.hasher.CheckLength(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, hashErr := s.hasher.Hash(in.Password)
	if hashErr != nil {
		err = models.NewInternalError(hashErr)
		return nil, err
	}

	user := &models.User{Username: username, Password: hashed}
	if err = s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks the credentials. Unknown users and wrong passwords produce the same error.
func (s *AuthService) Authenticate(ctx context.Context, in LoginInput) (*models.User, error) {
	ctx, span := observability.StartSpan(ctx, "service.auth.Authenticate")
	var err error
	defer func() { span.End(err) }()

	user, lookupErr := s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if lookupErr != nil {
		err = lookupErr
		return nil, err
	}
	if user == nil {
		// Spend the same hashing work as a real check.
		s.hasher.Verify(s.dummy(), in.Password)
		observability.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, models.NewUnauthorizedError("Invalid username or password")
	}
	if !s.hasher.Verify(user.Password, in.Password) {
		observability.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, models.NewUnauthorizedError("Invalid username or password")
	}

	observability.LoginAttempts.WithLabelValues("success").Inc()
	return user, nil
}

// Login authenticates and issues a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, in)
	if err != nil {
		return nil, err
	}
	token, su, err := s.sessions.Issue(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &LoginResult{Token: token, Session: su, User: user}, nil
}

// Logout ends the session. A nil session is a no-op.
func (s *AuthService) Logout(ctx context.Context, su *middleware.SessionUser) error {
	if su == nil {
		return nil
	}
	return s.sessions.Revoke(ctx, su)
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("inkwell-timing-equaliser")
	})
	return s.dummyHash
}
