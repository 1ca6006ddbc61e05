package domain

import "github.com/google/uuid"

// ChatRequest is the body of POST /api/chat/auth
type ChatRequest struct {
	Message        string `json:"message" validate:"required,max=32000"`
	ConversationID string `json:"conversationId,omitempty" validate:"omitempty,max=64"`
}

// ChatResponse is returned from POST /api/chat/auth
type ChatResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversationId"`
}

// GuestChatRequest is the body of POST /api/chat/guest
type GuestChatRequest struct {
	Message string `json:"message" validate:"required,max=32000"`
	GuestID string `json:"guestId" validate:"required,max=128"`
}

// GuestChatResponse is returned from POST /api/chat/guest
type GuestChatResponse struct {
	Answer  string `json:"answer"`
	GuestID string `json:"guestId"`
}

// RenameRequest is the body of PUT /api/conversations/{id}
type RenameRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// ChatInput is what the orchestrator needs for one turn. Authenticated turns
// set UserID, guest turns set GuestID.
type ChatInput struct {
	UserID         uuid.UUID
	GuestID        string
	Message        string
	ConversationID string
	IdempotencyKey string
}

// IsGuest reports whether the input targets the guest store
func (in ChatInput) IsGuest() bool {
	return in.UserID == uuid.Nil
}

// ChatResult is the orchestrator's answer for one turn
type ChatResult struct {
	Answer         string
	ConversationID string
	GuestID        string
}
