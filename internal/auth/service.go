package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetapp/internal/core"
	"budgetapp/internal/storage"
)

// UserStore is the slice of the repository the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*core.User, error)
	GetUserByUsername(ctx context.Context, username string) (*core.User, error)
}

// Service implements registration and authentication on top of a user store.
type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// Register hashes the password and persists a new user. A taken username
// surfaces as storage.ErrDuplicateUsername.
func (s *Service) Register(ctx context.Context, username, password string) (*core.User, error) {
	if err := core.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, hash)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateUsername) {
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "username", username)
	return user, nil
}

// Authenticate returns the user for valid credentials and (nil, nil) for
// both unknown username and wrong password. The two failure cases are
// indistinguishable to the caller: the unknown-username path still runs a
// bcrypt comparison so response timing does not reveal which one happened.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*core.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			compareDummy(password)
			return nil, nil
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, nil
	}

	return user, nil
}
