// Package auth registers users and checks their credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/thanhnp/coin-tracker/internal/models"
	"github.com/thanhnp/coin-tracker/internal/storage"
)

// MinPasswordLength is the shortest password Register accepts
const MinPasswordLength = 8

// Service manages user accounts
type Service struct {
	users *storage.UserStore
	log   *slog.Logger
}

// NewService creates a Service
func NewService(users *storage.UserStore, logger *slog.Logger) *Service {
	return &Service{users: users, log: logger}
}

// Register creates a user with a bcrypt-hashed password
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	const op = "auth.Register"

	username = strings.TrimSpace(username)
	if username == "" || strings.Contains(username, ":") {
		return nil, models.E(op, models.KindValidation, errors.New("username must be non-empty and must not contain ':'"))
	}
	if len(password) < MinPasswordLength {
		return nil, models.E(op, models.KindValidation, fmt.Errorf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, models.E(op, models.KindPersistence, err)
	}
	u := &models.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(u); err != nil {
		if errors.Is(err, models.ErrUserExists) {
			return nil, models.E(op, models.KindConflict, err)
		}
		s.log.Error("failed to create user", "username", username, "error", err)
		return nil, models.E(op, models.KindPersistence, err)
	}

	s.log.Info("registered user", "username", username)
	return u, nil
}

// Authenticate returns the user when password matches. Unknown users and
// wrong passwords produce the same Unauthorized error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	const op = "auth.Authenticate"

	u, err := s.users.Get(username)
	if err != nil {
		return nil, models.E(op, models.KindPersistence, err)
	}
	if u == nil {
		return nil, models.E(op, models.KindUnauthorized, models.ErrInvalidCredentials)
	}
	if err := VerifyPassword(password, u.PasswordHash); err != nil {
		return nil, models.E(op, models.KindUnauthorized, models.ErrInvalidCredentials)
	}
	return u, nil
}
