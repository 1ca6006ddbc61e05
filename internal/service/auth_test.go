package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/Rrens/chat-assistant/internal/security"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(repo *MockUserRepository) (*AuthService, *security.JWTManager) {
	jwtManager := security.NewJWTManager("test-secret-key-with-32-chars!!", 15*time.Minute, time.Hour)
	return NewAuthService(repo, jwtManager), jwtManager
}

func storedUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{ID: uuid.New(), Email: email, PasswordHash: string(hash)}
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newAuthService(repo)

		repo.On("EmailExists", ctx, "new@example.com").Return(false, nil)
		repo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

		user, err := svc.Register(ctx, domain.UserCreate{Email: " New@Example.com", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", user.Email)
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
		repo.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newAuthService(repo)

		repo.On("EmailExists", ctx, "taken@example.com").Return(true, nil)

		_, err := svc.Register(ctx, domain.UserCreate{Email: "taken@example.com", Password: "password123"})
		assert.ErrorIs(t, err, domain.ErrValidation)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, jwtManager := newAuthService(repo)
		user := storedUser(t, "user@example.com", "password123")

		repo.On("GetByEmail", ctx, "user@example.com").Return(user, nil)

		pair, err := svc.Login(ctx, domain.UserLogin{Email: "user@example.com", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, int64(900), pair.ExpiresIn)

		claims, err := jwtManager.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newAuthService(repo)
		user := storedUser(t, "user@example.com", "password123")

		repo.On("GetByEmail", ctx, "user@example.com").Return(user, nil)

		_, err := svc.Login(ctx, domain.UserLogin{Email: "user@example.com", Password: "nope"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("unknown email", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newAuthService(repo)

		repo.On("GetByEmail", ctx, "ghost@example.com").Return(nil, nil)

		_, err := svc.Login(ctx, domain.UserLogin{Email: "ghost@example.com", Password: "password123"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newAuthService(repo)

		repo.On("GetByEmail", ctx, "user@example.com").Return(nil, errors.New("db down"))

		_, err := svc.Login(ctx, domain.UserLogin{Email: "user@example.com", Password: "password123"})
		assert.ErrorIs(t, err, domain.ErrStorage)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	svc, jwtManager := newAuthService(repo)
	user := storedUser(t, "user@example.com", "password123")

	refreshToken, err := jwtManager.GenerateRefreshToken(user.ID)
	require.NoError(t, err)

	repo.On("GetByID", ctx, user.ID).Return(user, nil)

	pair, err := svc.Refresh(ctx, refreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_EmailExists(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	svc, _ := newAuthService(repo)

	repo.On("EmailExists", ctx, "user@example.com").Return(true, nil)

	exists, err := svc.EmailExists(ctx, "USER@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}
