package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/google/uuid"
)

const maxTitleLength = 200

// ConversationService serves the conversation management endpoints. Every
// operation is scoped to the calling user.
type ConversationService struct {
	conversations domain.ConversationStore
}

// NewConversationService creates a new conversation service
func NewConversationService(conversations domain.ConversationStore) *ConversationService {
	return &ConversationService{conversations: conversations}
}

// Create starts an empty conversation
func (s *ConversationService) Create(ctx context.Context, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.conversations.Create(ctx, userID.String())
	if err != nil {
		return nil, storageError("create conversation", err)
	}
	return conv, nil
}

// List returns the user's conversations, most recently updated first
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	conversations, err := s.conversations.ListByOwner(ctx, userID.String())
	if err != nil {
		return nil, storageError("list conversations", err)
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	return conversations, nil
}

// Get returns one conversation with its full message history
func (s *ConversationService) Get(ctx context.Context, userID uuid.UUID, id string) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id, userID.String())
	if err != nil {
		return nil, storageError("get conversation", err)
	}
	return conv, nil
}

// Rename replaces the title
func (s *ConversationService) Rename(ctx context.Context, userID uuid.UUID, id, title string) (*domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &domain.ValidationError{Field: "title", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, &domain.ValidationError{Field: "title", Message: "must be at most 200 characters"}
	}

	conv, err := s.conversations.Rename(ctx, id, userID.String(), title)
	if err != nil {
		return nil, storageError("rename conversation", err)
	}
	return conv, nil
}

// Delete removes a conversation permanently
func (s *ConversationService) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	deleted, err := s.conversations.Delete(ctx, id, userID.String())
	if err != nil {
		return storageError("delete conversation", err)
	}
	if !deleted {
		return &domain.NotFoundError{Resource: "conversation"}
	}
	return nil
}

// Search finds conversations whose title or messages contain query
func (s *ConversationService) Search(ctx context.Context, userID uuid.UUID, query string) ([]domain.Conversation, error) {
	conversations, err := s.conversations.SearchByOwner(ctx, userID.String(), query)
	if err != nil {
		return nil, storageError("search conversations", err)
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	return conversations, nil
}
