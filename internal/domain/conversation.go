package domain

import (
	"context"
	"time"
)

// DefaultConversationTitle is assigned to every newly created conversation
const DefaultConversationTitle = "New Conversation"

// Sender identifies who wrote a message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is a single entry of a conversation. Messages are never edited once
// appended; their position in Conversation.Messages is the authoritative order.
type Message struct {
	Sender    Sender    `json:"sender" bson:"sender"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Conversation is an ordered message history. Exactly one of OwnerUserID
// (authenticated users) or GuestID (guest conversations) is set, and the two
// kinds live in separate collections.
type Conversation struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"-"`
	GuestID     string    `json:"-"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LastMessage returns the most recently appended message, if any
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// ConversationStore persists conversations for a single kind of owner.
// owner is the user ID for the authenticated store and the guest ID for the
// guest store. Lookups that do not match both id and owner return ErrNotFound.
type ConversationStore interface {
	Create(ctx context.Context, owner string) (*Conversation, error)
	GetByID(ctx context.Context, id, owner string) (*Conversation, error)
	ListByOwner(ctx context.Context, owner string) ([]Conversation, error)
	Rename(ctx context.Context, id, owner, title string) (*Conversation, error)
	Delete(ctx context.Context, id, owner string) (bool, error)
	// AppendMessages appends all messages and bumps UpdatedAt in one atomic update
	AppendMessages(ctx context.Context, id, owner string, messages []Message) (*Conversation, error)
	SearchByOwner(ctx context.Context, owner, query string) ([]Conversation, error)
}

// GuestConversationStore is the store for guest conversations, where the
// guest ID alone addresses the single conversation of that guest.
type GuestConversationStore interface {
	ConversationStore
	// FindOrCreate returns the conversation keyed by owner, creating it atomically if absent
	FindOrCreate(ctx context.Context, owner string) (*Conversation, error)
}

// ClaimStore records which conversation an idempotency key resolved to, so
// concurrent first messages carrying the same key converge on one conversation.
type ClaimStore interface {
	// Lookup returns the claimed conversation ID, or "" when the key is unclaimed
	Lookup(ctx context.Context, owner, key string) (string, error)
	// Claim sets key to conversationID unless already claimed, and returns the winning ID
	Claim(ctx context.Context, owner, key, conversationID string) (string, error)
}
