package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/google/uuid"
)

var errConversationNotFound = &domain.NotFoundError{Resource: "conversation"}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ConversationRepository stores one kind of conversation in a table pair:
// the conversation rows and their positioned messages.
type ConversationRepository struct {
	db            *sql.DB
	table         string
	messagesTable string
}

// NewConversationRepository returns the store for authenticated users
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{
		db:            db.conn,
		table:         "conversations",
		messagesTable: "conversation_messages",
	}
}

// Create inserts an empty conversation with the default title
func (r *ConversationRepository) Create(ctx context.Context, owner string) (*domain.Conversation, error) {
	ts := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		Title:     domain.DefaultConversationTitle,
		Messages:  []domain.Message{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	r.setOwner(conv, owner)

	query := fmt.Sprintf(`INSERT INTO %s (id, owner, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`, r.table)
	if _, err := r.db.ExecContext(ctx, query, conv.ID, owner, conv.Title, ts.UnixNano(), ts.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// GetByID returns the conversation only if owner matches
func (r *ConversationRepository) GetByID(ctx context.Context, id, owner string) (*domain.Conversation, error) {
	return r.get(ctx, r.db, id, owner)
}

// ListByOwner returns all conversations of owner, most recently updated first
func (r *ConversationRepository) ListByOwner(ctx context.Context, owner string) ([]domain.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, owner, title, created_at, updated_at
		FROM %s
		WHERE owner = ?
		ORDER BY updated_at DESC, id`, r.table)

	return r.list(ctx, query, owner)
}

// Rename sets the title and bumps updated_at
func (r *ConversationRepository) Rename(ctx context.Context, id, owner, title string) (*domain.Conversation, error) {
	query := fmt.Sprintf(`UPDATE %s SET title = ?, updated_at = ? WHERE id = ? AND owner = ?`, r.table)

	res, err := r.db.ExecContext(ctx, query, title, time.Now().UTC().UnixNano(), id, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errConversationNotFound
	}

	return r.get(ctx, r.db, id, owner)
}

// Delete removes the conversation and its messages
func (r *ConversationRepository) Delete(ctx context.Context, id, owner string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND owner = ?`, r.table), id, owner)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = ?`, r.messagesTable), id); err != nil {
		return false, fmt.Errorf("failed to delete messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}

	return true, nil
}

// AppendMessages appends all messages after the current last position and
// bumps updated_at in a single transaction.
func (r *ConversationRepository) AppendMessages(ctx context.Context, id, owner string, messages []domain.Message) (*domain.Conversation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET updated_at = ? WHERE id = ? AND owner = ?`, r.table),
		time.Now().UTC().UnixNano(), id, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append messages: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errConversationNotFound
	}

	var next int
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COALESCE(MAX(position), -1) + 1 FROM %s WHERE conversation_id = ?`, r.messagesTable), id,
	).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to read message position: %w", err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (conversation_id, position, sender, content, timestamp) VALUES (?, ?, ?, ?, ?)`, r.messagesTable)
	for i, m := range messages {
		if _, err := tx.ExecContext(ctx, insert, id, next+i, string(m.Sender), m.Content, m.Timestamp.UTC().UnixNano()); err != nil {
			return nil, fmt.Errorf("failed to append messages: %w", err)
		}
	}

	conv, err := r.get(ctx, tx, id, owner)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit append: %w", err)
	}

	return conv, nil
}

// SearchByOwner matches query case-insensitively against the title and every
// message body. LIKE wildcards in query are matched literally.
func (r *ConversationRepository) SearchByOwner(ctx context.Context, owner, query string) ([]domain.Conversation, error) {
	pattern := "%" + escapeLike(foldCase(query)) + "%"

	stmt := fmt.Sprintf(`
		SELECT c.id, c.owner, c.title, c.created_at, c.updated_at
		FROM %[1]s c
		WHERE c.owner = ?
		  AND (%[3]s(c.title) LIKE ? ESCAPE '\'
		       OR EXISTS (
		           SELECT 1 FROM %[2]s m
		           WHERE m.conversation_id = c.id AND %[3]s(m.content) LIKE ? ESCAPE '\'))
		ORDER BY c.updated_at DESC, c.id`, r.table, r.messagesTable, foldFunc)

	return r.list(ctx, stmt, owner, pattern, pattern)
}

func (r *ConversationRepository) list(ctx context.Context, query string, args ...any) ([]domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	conversations := []domain.Conversation{}
	for rows.Next() {
		conv, err := r.scan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	// release the only connection before loading messages
	rows.Close()

	for i := range conversations {
		messages, err := r.messages(ctx, r.db, conversations[i].ID)
		if err != nil {
			return nil, err
		}
		conversations[i].Messages = messages
	}

	return conversations, nil
}

func (r *ConversationRepository) get(ctx context.Context, q querier, id, owner string) (*domain.Conversation, error) {
	query := fmt.Sprintf(`SELECT id, owner, title, created_at, updated_at FROM %s WHERE id = ? AND owner = ?`, r.table)

	conv, err := r.scan(q.QueryRowContext(ctx, query, id, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errConversationNotFound
		}
		return nil, err
	}

	conv.Messages, err = r.messages(ctx, q, conv.ID)
	if err != nil {
		return nil, err
	}

	return conv, nil
}

func (r *ConversationRepository) messages(ctx context.Context, q querier, conversationID string) ([]domain.Message, error) {
	query := fmt.Sprintf(`SELECT sender, content, timestamp FROM %s WHERE conversation_id = ? ORDER BY position`, r.messagesTable)

	rows, err := q.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			m      domain.Message
			sender string
			ts     int64
		)
		if err := rows.Scan(&sender, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Sender = domain.Sender(sender)
		m.Timestamp = time.Unix(0, ts).UTC()
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *ConversationRepository) scan(row scanner) (*domain.Conversation, error) {
	var (
		conv               domain.Conversation
		owner              string
		createdAt, updated int64
	)
	if err := row.Scan(&conv.ID, &owner, &conv.Title, &createdAt, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	r.setOwner(&conv, owner)
	conv.CreatedAt = time.Unix(0, createdAt).UTC()
	conv.UpdatedAt = time.Unix(0, updated).UTC()
	conv.Messages = []domain.Message{}
	return &conv, nil
}

func (r *ConversationRepository) setOwner(conv *domain.Conversation, owner string) {
	if r.table == "guest_conversations" {
		conv.GuestID = owner
		return
	}
	conv.OwnerUserID = owner
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GuestConversationRepository stores guest conversations, one per guest ID
type GuestConversationRepository struct {
	*ConversationRepository
}

// NewGuestConversationRepository returns the store for guest conversations
func NewGuestConversationRepository(db *DB) *GuestConversationRepository {
	return &GuestConversationRepository{
		ConversationRepository: &ConversationRepository{
			db:            db.conn,
			table:         "guest_conversations",
			messagesTable: "guest_conversation_messages",
		},
	}
}

// FindOrCreate returns the guest's conversation, inserting it if absent. The
// unique owner column turns a concurrent second insert into a no-op.
func (r *GuestConversationRepository) FindOrCreate(ctx context.Context, guestID string) (*domain.Conversation, error) {
	ts := time.Now().UTC().UnixNano()

	insert := fmt.Sprintf(`
		INSERT INTO %s (id, owner, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner) DO NOTHING`, r.table)
	if _, err := r.db.ExecContext(ctx, insert, uuid.NewString(), guestID, domain.DefaultConversationTitle, ts, ts); err != nil {
		return nil, fmt.Errorf("failed to find or create guest conversation: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, owner, title, created_at, updated_at FROM %s WHERE owner = ?`, r.table)
	conv, err := r.scan(r.db.QueryRowContext(ctx, query, guestID))
	if err != nil {
		return nil, fmt.Errorf("failed to find or create guest conversation: %w", err)
	}

	conv.Messages, err = r.messages(ctx, r.db, conv.ID)
	if err != nil {
		return nil, err
	}

	return conv, nil
}
