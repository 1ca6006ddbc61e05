package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errConversationNotFound = &domain.NotFoundError{Resource: "conversation"}

// ConversationRepository stores one kind of conversation in a session table
// and a table of positioned messages.
type ConversationRepository struct {
	db            *DB
	table         string
	messagesTable string
	guest         bool
}

// NewConversationRepository returns the store for authenticated users
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{
		db:            db,
		table:         "chat_sessions",
		messagesTable: "chat_messages",
	}
}

// Create inserts an empty conversation with the default title
func (r *ConversationRepository) Create(ctx context.Context, owner string) (*domain.Conversation, error) {
	ts := now()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		Title:     domain.DefaultConversationTitle,
		Messages:  []domain.Message{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	r.setOwner(conv, owner)

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.table)
	if _, err := r.db.Pool.Exec(ctx, query, conv.ID, owner, conv.Title, ts, ts); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// GetByID returns the conversation only if owner matches
func (r *ConversationRepository) GetByID(ctx context.Context, id, owner string) (*domain.Conversation, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, errConversationNotFound
	}
	return r.get(ctx, r.db.Pool, sessionID, owner)
}

// ListByOwner returns all conversations of owner, most recently updated first
func (r *ConversationRepository) ListByOwner(ctx context.Context, owner string) ([]domain.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, owner, title, created_at, updated_at
		FROM %s
		WHERE owner = $1
		ORDER BY updated_at DESC, id
	`, r.table)

	return r.list(ctx, query, owner)
}

// Rename sets the title and bumps updated_at
func (r *ConversationRepository) Rename(ctx context.Context, id, owner, title string) (*domain.Conversation, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, errConversationNotFound
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, updated_at = $2
		WHERE id = $3 AND owner = $4
	`, r.table)
	tag, err := r.db.Pool.Exec(ctx, query, title, now(), sessionID, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, errConversationNotFound
	}

	return r.get(ctx, r.db.Pool, sessionID, owner)
}

// Delete removes the conversation. Messages go with it through ON DELETE CASCADE.
func (r *ConversationRepository) Delete(ctx context.Context, id, owner string) (bool, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner = $2`, r.table)
	tag, err := r.db.Pool.Exec(ctx, query, sessionID, owner)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AppendMessages appends all messages after the current last position. The
// updated_at bump takes the session row lock, so concurrent appends to the
// same conversation are serialized.
func (r *ConversationRepository) AppendMessages(ctx context.Context, id, owner string, messages []domain.Message) (*domain.Conversation, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, errConversationNotFound
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET updated_at = $1 WHERE id = $2 AND owner = $3`, r.table),
		now(), sessionID, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append messages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, errConversationNotFound
	}

	var next int
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT COALESCE(MAX(position), -1) + 1 FROM %s WHERE session_id = $1`, r.messagesTable),
		sessionID,
	).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to read message position: %w", err)
	}

	batch := &pgx.Batch{}
	insert := fmt.Sprintf(`
		INSERT INTO %s (session_id, position, sender, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.messagesTable)
	for i, m := range messages {
		batch.Queue(insert, sessionID, next+i, string(m.Sender), m.Content, m.Timestamp.UTC())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("failed to append messages: %w", err)
	}

	conv, err := r.get(ctx, tx, sessionID, owner)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit append: %w", err)
	}

	return conv, nil
}

// SearchByOwner matches query case-insensitively against the title and every
// message body. LIKE wildcards in query are matched literally.
func (r *ConversationRepository) SearchByOwner(ctx context.Context, owner, query string) ([]domain.Conversation, error) {
	pattern := "%" + escapeLike(query) + "%"

	stmt := fmt.Sprintf(`
		SELECT s.id, s.owner, s.title, s.created_at, s.updated_at
		FROM %[1]s s
		WHERE s.owner = $1
		  AND (s.title ILIKE $2
		       OR EXISTS (
		           SELECT 1 FROM %[2]s m
		           WHERE m.session_id = s.id AND m.content ILIKE $2))
		ORDER BY s.updated_at DESC, s.id
	`, r.table, r.messagesTable)

	return r.list(ctx, stmt, owner, pattern)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *ConversationRepository) list(ctx context.Context, query string, args ...any) ([]domain.Conversation, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	conversations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Conversation, error) {
		conv, err := r.scan(row)
		if err != nil {
			return domain.Conversation{}, err
		}
		return *conv, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversations: %w", err)
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}

	for i := range conversations {
		messages, err := r.messages(ctx, r.db.Pool, conversations[i].ID)
		if err != nil {
			return nil, err
		}
		conversations[i].Messages = messages
	}

	return conversations, nil
}

func (r *ConversationRepository) get(ctx context.Context, q querier, id uuid.UUID, owner string) (*domain.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, owner, title, created_at, updated_at
		FROM %s
		WHERE id = $1 AND owner = $2
	`, r.table)

	conv, err := r.scan(q.QueryRow(ctx, query, id, owner))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	conv.Messages, err = r.messages(ctx, q, conv.ID)
	if err != nil {
		return nil, err
	}

	return conv, nil
}

func (r *ConversationRepository) messages(ctx context.Context, q querier, sessionID string) ([]domain.Message, error) {
	query := fmt.Sprintf(`
		SELECT sender, content, created_at
		FROM %s
		WHERE session_id = $1
		ORDER BY position
	`, r.messagesTable)

	rows, err := q.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		var (
			m      domain.Message
			sender string
		)
		if err := row.Scan(&sender, &m.Content, &m.Timestamp); err != nil {
			return m, err
		}
		m.Sender = domain.Sender(sender)
		m.Timestamp = m.Timestamp.UTC()
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return messages, nil
}

func (r *ConversationRepository) scan(row pgx.Row) (*domain.Conversation, error) {
	var (
		conv  domain.Conversation
		id    uuid.UUID
		owner string
	)
	if err := row.Scan(&id, &owner, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, err
	}
	conv.ID = id.String()
	r.setOwner(&conv, owner)
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	conv.Messages = []domain.Message{}
	return &conv, nil
}

func (r *ConversationRepository) setOwner(conv *domain.Conversation, owner string) {
	if r.guest {
		conv.GuestID = owner
		return
	}
	conv.OwnerUserID = owner
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// now matches the microsecond precision of timestamptz
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// GuestConversationRepository stores guest conversations, one per guest ID
type GuestConversationRepository struct {
	*ConversationRepository
}

// NewGuestConversationRepository returns the store for guest conversations
func NewGuestConversationRepository(db *DB) *GuestConversationRepository {
	return &GuestConversationRepository{
		ConversationRepository: &ConversationRepository{
			db:            db,
			table:         "guest_chat_sessions",
			messagesTable: "guest_chat_messages",
			guest:         true,
		},
	}
}

// FindOrCreate returns the guest's conversation, inserting it if absent. The
// unique owner column turns a concurrent second insert into a no-op.
func (r *GuestConversationRepository) FindOrCreate(ctx context.Context, guestID string) (*domain.Conversation, error) {
	ts := now()

	insert := fmt.Sprintf(`
		INSERT INTO %s (id, owner, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner) DO NOTHING
	`, r.table)
	if _, err := r.db.Pool.Exec(ctx, insert, uuid.New(), guestID, domain.DefaultConversationTitle, ts, ts); err != nil {
		return nil, fmt.Errorf("failed to find or create guest conversation: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, owner, title, created_at, updated_at FROM %s WHERE owner = $1`, r.table)
	conv, err := r.scan(r.db.Pool.QueryRow(ctx, query, guestID))
	if err != nil {
		return nil, fmt.Errorf("failed to find or create guest conversation: %w", err)
	}

	conv.Messages, err = r.messages(ctx, r.db.Pool, conv.ID)
	if err != nil {
		return nil, err
	}

	return conv, nil
}
