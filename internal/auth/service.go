// Package auth implements credential storage and session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/capitalize-ai/alpine-chat/internal/model"
	"github.com/capitalize-ai/alpine-chat/internal/store"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
	"github.com/capitalize-ai/alpine-chat/pkg/metrics"
)

var (
	// ErrDuplicateIdentity is returned when registering an email that already exists.
	ErrDuplicateIdentity = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned for a bad, expired or orphaned token.
	ErrUnauthenticated = errors.New("not authenticated")
)

// rejectionTTL bounds how long an unknown or inactive user ID is refused
// without a store read.
const rejectionTTL = time.Minute

// UserStore is the subset of the repository the credential store needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Service registers users, checks passwords and verifies session tokens.
type Service struct {
	users  UserStore
	tokens   *TokenIssuer
	rejected *cache.Cache
	logger   *logger.Logger
}

// NewService creates a credential service.
func NewService(users UserStore, tokens *TokenIssuer, log *logger.Logger) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		rejected: cache.New(rejectionTTL, 2*rejectionTTL),
		logger:   log,
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user and issues a session token.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Email:        NormalizeEmail(req.Email),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			metrics.RecordAuth("register", "duplicate")
			return nil, ErrDuplicateIdentity
		}
		metrics.RecordAuth("register", "error")
		return nil, fmt.Errorf("create user: %w", err)
	}

	metrics.RecordAuth("register", "success")
	s.logger.Info("user registered", zap.String("user_id", user.ID))

	return s.issue(user)
}

// Authenticate checks credentials and issues a session token.
func (s *Service) Authenticate(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		equalizeTiming(req.Password)
		metrics.RecordAuth("login", "invalid")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		metrics.RecordAuth("login", "error")
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, req.Password) || !user.IsActive {
		metrics.RecordAuth("login", "invalid")
		return nil, ErrInvalidCredentials
	}

	metrics.RecordAuth("login", "success")
	return s.issue(user)
}

// Verify resolves a session token to an active, existing user.
func (s *Service) Verify(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		outcome := "invalid"
		if IsExpired(err) {
			outcome = "expired"
		}
		metrics.RecordAuth("verify", outcome)
		return nil, ErrUnauthenticated
	}

	if outcome, ok := s.rejected.Get(userID); ok {
		metrics.RecordAuth("verify", outcome.(string))
		return nil, ErrUnauthenticated
	}

	// Accepted users are never cached.
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.reject(userID, "unknown_user")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, s.reject(userID, "inactive")
	}
	return user, nil
}

func (s *Service) reject(userID, outcome string) error {
	s.rejected.Set(userID, outcome, cache.DefaultExpiration)
	metrics.RecordAuth("verify", outcome)
	return ErrUnauthenticated
}

func (s *Service) issue(user *model.User) (*model.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}
