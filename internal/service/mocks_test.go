package service

import (
	"context"

	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/Rrens/chat-assistant/internal/llm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockConversationStore mocks domain.ConversationStore
type MockConversationStore struct {
	mock.Mock
}

func (m *MockConversationStore) Create(ctx context.Context, owner string) (*domain.Conversation, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) GetByID(ctx context.Context, id, owner string) (*domain.Conversation, error) {
	args := m.Called(ctx, id, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) ListByOwner(ctx context.Context, owner string) ([]domain.Conversation, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) Rename(ctx context.Context, id, owner, title string) (*domain.Conversation, error) {
	args := m.Called(ctx, id, owner, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) Delete(ctx context.Context, id, owner string) (bool, error) {
	args := m.Called(ctx, id, owner)
	return args.Bool(0), args.Error(1)
}

func (m *MockConversationStore) AppendMessages(ctx context.Context, id, owner string, messages []domain.Message) (*domain.Conversation, error) {
	args := m.Called(ctx, id, owner, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) SearchByOwner(ctx context.Context, owner, query string) ([]domain.Conversation, error) {
	args := m.Called(ctx, owner, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

// MockGuestConversationStore mocks domain.GuestConversationStore
type MockGuestConversationStore struct {
	MockConversationStore
}

func (m *MockGuestConversationStore) FindOrCreate(ctx context.Context, owner string) (*domain.Conversation, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

// MockClaimStore mocks domain.ClaimStore
type MockClaimStore struct {
	mock.Mock
}

func (m *MockClaimStore) Lookup(ctx context.Context, owner, key string) (string, error) {
	args := m.Called(ctx, owner, key)
	return args.String(0), args.Error(1)
}

func (m *MockClaimStore) Claim(ctx context.Context, owner, key, conversationID string) (string, error) {
	args := m.Called(ctx, owner, key, conversationID)
	return args.String(0), args.Error(1)
}

// MockLLMProvider mocks llm.Provider
type MockLLMProvider struct {
	mock.Mock
}

func (m *MockLLMProvider) Name() string {
	return "mock"
}

func (m *MockLLMProvider) AvailableModels() []string {
	return []string{"mock-model"}
}

func (m *MockLLMProvider) DefaultModel() string {
	return "mock-model"
}

func (m *MockLLMProvider) IsConfigured() bool {
	return true
}

func (m *MockLLMProvider) Generate(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	args := m.Called(ctx, req, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

// MockUserRepository mocks domain.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}
