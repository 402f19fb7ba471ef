// Package auth owns password hashing, bearer tokens and the register,
// login and authenticate flows built on them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/quill/internal/model"
	"github.com/alphabot-ai/quill/internal/store"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrEmptySecret        = errors.New("auth: signing secret is empty")
)

type Service struct {
	users    store.UserStore
	secret   []byte
	tokenTTL time.Duration
}

func NewService(users store.UserStore, secret string, tokenTTL time.Duration) (*Service, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Service{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}, nil
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio,omitempty"`
}

// Session is what a successful register or login hands back to the caller.
type Session struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// Register creates the user and signs them in. Every failure, including a
// taken username or email, is reported as ErrValidation.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if in.Password == "" {
		return Session{}, fmt.Errorf("%w: password required", ErrValidation)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	user := model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Bio:          in.Bio,
	}
	if err := s.users.CreateUser(ctx, &user); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	token, err := s.IssueToken(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return Session{User: user, Token: token}, nil
}

// Login checks the credentials. An unknown email and a wrong password are
// both ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	token, err := s.IssueToken(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, bearer string) (model.User, error) {
	token := strings.TrimSpace(strings.TrimPrefix(bearer, "Bearer "))
	if token == "" {
		return model.User{}, ErrUnauthenticated
	}
	userID, err := s.ParseToken(token)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return user, nil
}
