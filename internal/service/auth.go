package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmailTaken is returned when registering an email that already has an account
var ErrEmailTaken = &domain.ValidationError{Field: "email", Message: "already registered"}

// TokenIssuer issues and refreshes token pairs
type TokenIssuer interface {
	GenerateTokenPair(userID uuid.UUID, email string) (accessToken, refreshToken string, expiresIn int64, err error)
	ValidateRefreshToken(token string) (uuid.UUID, error)
}

// AuthService handles authentication operations
type AuthService struct {
	userRepo domain.UserRepository
	tokens   TokenIssuer
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo domain.UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, input domain.UserCreate) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	exists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, &domain.StorageError{Op: "check email", Err: err}
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, &domain.StorageError{Op: "create user", Err: err}
	}

	log.Info().Str("user_id", user.ID.String()).Msg("user registered")

	return user, nil
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, input domain.UserLogin) (*domain.TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		return nil, &domain.StorageError{Op: "get user", Err: err}
	}
	if user == nil {
		return nil, &domain.AuthError{Reason: domain.AuthInvalidCredentials}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, &domain.AuthError{Reason: domain.AuthInvalidCredentials, Err: err}
	}

	return s.issue(user)
}

// Refresh exchanges a refresh token for a new token pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	userID, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, &domain.AuthError{Reason: domain.AuthInvalidToken, Err: err}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get user", Err: err}
	}
	if user == nil {
		return nil, &domain.AuthError{Reason: domain.AuthInvalidToken, Err: errors.New("user no longer exists")}
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*domain.TokenPair, error) {
	accessToken, refreshToken, expiresIn, err := s.tokens.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// EmailExists reports whether an account is registered for email
func (s *AuthService) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := s.userRepo.EmailExists(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, &domain.StorageError{Op: "check email", Err: err}
	}
	return exists, nil
}
