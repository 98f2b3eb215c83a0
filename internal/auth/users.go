// Package auth manages user accounts, bearer tokens, and the request
// identity carried through contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fivemin/harmony/pkg/metrics"
)

// User is a registered account. PasswordHash is a bcrypt hash and never
// leaves this package.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser stores a new user; ErrUsernameTaken when the username exists.
	CreateUser(ctx context.Context, u *User) error
	// GetUser fetches by id; ErrUserNotFound when absent.
	GetUser(ctx context.Context, id string) (*User, error)
	// GetUserByUsername fetches by username; ErrUserNotFound when absent.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// ListUsers returns all users ordered by username.
	ListUsers(ctx context.Context) ([]*User, error)
}

// Service implements register/login and user listing over a UserStore.
type Service struct {
	store  UserStore
	tokens *JWTVerifier
	ttl    time.Duration
}

// NewService constructs an auth service issuing tokens with the given
// secret and lifetime.
func NewService(store UserStore, secret []byte, ttl time.Duration) *Service {
	return &Service{
		store:  store,
		tokens: NewJWTVerifier(secret),
		ttl:    ttl,
	}
}

// Verifier returns the token verifier for request middleware.
func (s *Service) Verifier() TokenVerifier { return s.tokens }

// Register creates a user and logs it in, returning the user and a
// fresh bearer token.
func (s *Service) Register(ctx context.Context, username, password, email string) (*User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Generate(u.ID, s.ttl)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	metrics.RecordAuthLogin()
	return u, token, nil
}

// Login verifies credentials and returns the user and a fresh bearer
// token. Unknown usernames and wrong passwords both fail with
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*User, string, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.RecordAuthFailure()
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		metrics.RecordAuthFailure()
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(u.ID, s.ttl)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	metrics.RecordAuthLogin()
	return u, token, nil
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.store.GetUser(ctx, id)
}

// ListUsers returns all registered users.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.ListUsers(ctx)
}
