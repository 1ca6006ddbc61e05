package sqlite_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/Rrens/chat-assistant/internal/repository/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func pair(user, assistant string, ts time.Time) []domain.Message {
	return []domain.Message{
		{Sender: domain.SenderUser, Content: user, Timestamp: ts},
		{Sender: domain.SenderAssistant, Content: assistant, Timestamp: ts},
	}
}

func TestConversationRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewConversationRepository(newDB(t))

	created, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.DefaultConversationTitle, created.Title)
	assert.Equal(t, "user-1", created.OwnerUserID)
	assert.NotNil(t, created.Messages)

	got, err := repo.GetByID(ctx, created.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Empty(t, got.Messages)
}

func TestConversationRepository_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewConversationRepository(newDB(t))

	conv, err := repo.Create(ctx, "user-a")
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, conv.ID, "user-b")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.Rename(ctx, conv.ID, "user-b", "stolen")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.AppendMessages(ctx, conv.ID, "user-b", pair("x", "y", time.Now()))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := repo.Delete(ctx, conv.ID, "user-b")
	require.NoError(t, err)
	assert.False(t, deleted)

	list, err := repo.ListByOwner(ctx, "user-b")
	require.NoError(t, err)
	assert.Empty(t, list)

	// untouched for the real owner
	got, err := repo.GetByID(ctx, conv.ID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConversationTitle, got.Title)
	assert.Empty(t, got.Messages)
}

func TestConversationRepository_AppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewConversationRepository(newDB(t))

	conv, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)

	ts := time.Now().UTC()
	_, err = repo.AppendMessages(ctx, conv.ID, "user-1", pair("q1", "a1", ts))
	require.NoError(t, err)

	updated, err := repo.AppendMessages(ctx, conv.ID, "user-1", pair("q2", "a2", ts.Add(time.Second)))
	require.NoError(t, err)

	require.Len(t, updated.Messages, 4)
	contents := []string{}
	for _, m := range updated.Messages {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"q1", "a1", "q2", "a2"}, contents)
	assert.Equal(t, domain.SenderUser, updated.Messages[2].Sender)
	assert.Equal(t, domain.SenderAssistant, updated.Messages[3].Sender)
	assert.False(t, updated.UpdatedAt.Before(conv.UpdatedAt))
}

func TestConversationRepository_ConcurrentAppendsKeepPairs(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewConversationRepository(newDB(t))

	conv, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)

	const turns = 10
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.AppendMessages(ctx, conv.ID, "user-1", pair(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), time.Now()))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2*turns)

	for i := 0; i < len(got.Messages); i += 2 {
		user, assistant := got.Messages[i], got.Messages[i+1]
		assert.Equal(t, domain.SenderUser, user.Sender)
		assert.Equal(t, domain.SenderAssistant, assistant.Sender)
		assert.Equal(t, "a"+user.Content[1:], assistant.Content, "pair split at position %d", i)
	}
}

func TestConversationRepository_RenameIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewConversationRepository(newDB(t))

	conv, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)

	first, err := repo.Rename(ctx, conv.ID, "user-1", "Holiday")
	require.NoError(t, err)
	second, err := repo.Rename(ctx, conv.ID, "user-1", "Holiday")
	require.NoError(t, err)

	assert.Equal(t, "Holiday", first.Title)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Messages, second.Messages)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestConversationRepository_ListOrderedByUpdatedAt(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewConversationRepository(newDB(t))

	older, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)
	newer, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	_, err = repo.AppendMessages(ctx, older.ID, "user-1", pair("bump", "ok", time.Now()))
	require.NoError(t, err)

	list, err := repo.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, older.ID, list[0].ID)
	assert.Equal(t, newer.ID, list[1].ID)
	assert.Len(t, list[0].Messages, 2)
}

func TestConversationRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewConversationRepository(newDB(t))

	conv, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = repo.AppendMessages(ctx, conv.ID, "user-1", pair("q", "a", time.Now()))
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.GetByID(ctx, conv.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err = repo.Delete(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestConversationRepository_Search(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewConversationRepository(newDB(t))

	byTitle, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = repo.Rename(ctx, byTitle.ID, "user-1", "Paris itinerary")
	require.NoError(t, err)

	byContent, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = repo.AppendMessages(ctx, byContent.ID, "user-1", pair("What about PARIS in May?", "Lovely.", time.Now()))
	require.NoError(t, err)

	wildcard, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = repo.AppendMessages(ctx, wildcard.ID, "user-1", pair("discount is 100% off", "nice", time.Now()))
	require.NoError(t, err)

	other, err := repo.Create(ctx, "user-2")
	require.NoError(t, err)
	_, err = repo.Rename(ctx, other.ID, "user-2", "paris")
	require.NoError(t, err)

	results, err := repo.SearchByOwner(ctx, "user-1", "paris")
	require.NoError(t, err)
	ids := []string{}
	for _, c := range results {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{byTitle.ID, byContent.ID}, ids)

	results, err = repo.SearchByOwner(ctx, "user-1", "0% o")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, wildcard.ID, results[0].ID)

	results, err = repo.SearchByOwner(ctx, "user-1", "%")
	require.NoError(t, err)
	assert.Len(t, results, 1, "percent sign must match literally")

	results, err = repo.SearchByOwner(ctx, "user-1", "nothing like this")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestConversationRepository_SearchFoldsNonASCII(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewConversationRepository(newDB(t))

	conv, err := repo.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = repo.Rename(ctx, conv.ID, "user-1", "Über plans")
	require.NoError(t, err)
	_, err = repo.AppendMessages(ctx, conv.ID, "user-1", pair("Élan vital", "Ça va", time.Now()))
	require.NoError(t, err)

	for _, query := range []string{"Über", "über", "ÜBER", "Élan", "élan", "ÉLAN", "ça va"} {
		t.Run(query, func(t *testing.T) {
			results, err := repo.SearchByOwner(ctx, "user-1", query)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, conv.ID, results[0].ID)
		})
	}
}

func TestGuestConversationRepository_FindOrCreate(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	guests := sqlite.NewGuestConversationRepository(db)

	first, err := guests.FindOrCreate(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, "guest-1", first.GuestID)
	assert.Empty(t, first.OwnerUserID)

	_, err = guests.AppendMessages(ctx, first.ID, "guest-1", pair("hi", "hello", time.Now()))
	require.NoError(t, err)

	second, err := guests.FindOrCreate(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Messages, 2)

	other, err := guests.FindOrCreate(ctx, "guest-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	// guest and user collections never see each other
	users := sqlite.NewConversationRepository(db)
	_, err = users.GetByID(ctx, first.ID, "guest-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGuestConversationRepository_ConcurrentFindOrCreate(t *testing.T) {
	ctx := context.Background()
	guests := sqlite.NewGuestConversationRepository(newDB(t))

	const callers = 8
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := guests.FindOrCreate(ctx, "guest-race")
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}
