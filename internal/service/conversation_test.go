package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConversationService_Create(t *testing.T) {
	store := new(MockConversationStore)
	svc := NewConversationService(store)
	ctx := context.Background()
	userID := uuid.New()

	store.On("Create", ctx, userID.String()).Return(emptyConversation("c1"), nil)

	conv, err := svc.Create(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.Equal(t, domain.DefaultConversationTitle, conv.Title)
	assert.Empty(t, conv.Messages)
}

func TestConversationService_ListNeverNil(t *testing.T) {
	store := new(MockConversationStore)
	svc := NewConversationService(store)
	ctx := context.Background()
	userID := uuid.New()

	store.On("ListByOwner", ctx, userID.String()).Return(nil, nil)

	list, err := svc.List(ctx, userID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestConversationService_ListStorageError(t *testing.T) {
	store := new(MockConversationStore)
	svc := NewConversationService(store)
	ctx := context.Background()
	userID := uuid.New()

	store.On("ListByOwner", ctx, userID.String()).Return(nil, errors.New("timeout"))

	_, err := svc.List(ctx, userID)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestConversationService_OwnershipIsolation(t *testing.T) {
	store := new(MockConversationStore)
	svc := NewConversationService(store)
	ctx := context.Background()
	intruder := uuid.New()
	notFound := &domain.NotFoundError{Resource: "conversation"}

	store.On("GetByID", ctx, "c1", intruder.String()).Return(nil, notFound)
	store.On("Rename", ctx, "c1", intruder.String(), "mine now").Return(nil, notFound)
	store.On("Delete", ctx, "c1", intruder.String()).Return(false, nil)

	_, err := svc.Get(ctx, intruder, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Rename(ctx, intruder, "c1", "mine now")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = svc.Delete(ctx, intruder, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	store.AssertExpectations(t)
}

func TestConversationService_Rename(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("trims and stores title", func(t *testing.T) {
		store := new(MockConversationStore)
		svc := NewConversationService(store)
		renamed := &domain.Conversation{ID: "c1", Title: "Trip", Messages: []domain.Message{}}
		store.On("Rename", ctx, "c1", userID.String(), "Trip").Return(renamed, nil).Twice()

		first, err := svc.Rename(ctx, userID, "c1", "  Trip ")
		require.NoError(t, err)
		second, err := svc.Rename(ctx, userID, "c1", "Trip")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		store.AssertExpectations(t)
	})

	t.Run("rejects empty title", func(t *testing.T) {
		store := new(MockConversationStore)
		svc := NewConversationService(store)

		_, err := svc.Rename(ctx, userID, "c1", "   ")
		assert.ErrorIs(t, err, domain.ErrValidation)
		store.AssertNotCalled(t, "Rename", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects long title", func(t *testing.T) {
		store := new(MockConversationStore)
		svc := NewConversationService(store)

		_, err := svc.Rename(ctx, userID, "c1", strings.Repeat("a", 201))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestConversationService_Delete(t *testing.T) {
	store := new(MockConversationStore)
	svc := NewConversationService(store)
	ctx := context.Background()
	userID := uuid.New()

	store.On("Delete", ctx, "c1", userID.String()).Return(true, nil)

	assert.NoError(t, svc.Delete(ctx, userID, "c1"))
}

func TestConversationService_Search(t *testing.T) {
	store := new(MockConversationStore)
	svc := NewConversationService(store)
	ctx := context.Background()
	userID := uuid.New()

	found := []domain.Conversation{{ID: "c1", Title: "Paris"}}
	store.On("SearchByOwner", ctx, userID.String(), "paris").Return(found, nil)
	store.On("SearchByOwner", ctx, userID.String(), "zzz").Return(nil, nil)

	got, err := svc.Search(ctx, userID, "paris")
	require.NoError(t, err)
	assert.Equal(t, found, got)

	got, err = svc.Search(ctx, userID, "zzz")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
