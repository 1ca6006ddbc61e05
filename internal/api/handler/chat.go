package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/chat-assistant/internal/api/middleware"
	"github.com/Rrens/chat-assistant/internal/api/response"
	"github.com/Rrens/chat-assistant/internal/domain"
)

// IdempotencyKeyHeader lets a client retry a first message without creating
// a second conversation
const IdempotencyKeyHeader = "Idempotency-Key"

// ChatService runs a chat turn
type ChatService interface {
	Chat(ctx context.Context, in domain.ChatInput) (*domain.ChatResult, error)
}

// ChatHandler handles the authenticated and guest chat endpoints
type ChatHandler struct {
	chatService ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Auth handles POST /api/chat/auth
func (h *ChatHandler) Auth(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.ChatRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.chatService.Chat(r.Context(), domain.ChatInput{
		UserID:         userID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, domain.ChatResponse{
		Answer:         result.Answer,
		ConversationID: result.ConversationID,
	})
}

// Guest handles POST /api/chat/guest
func (h *ChatHandler) Guest(w http.ResponseWriter, r *http.Request) {
	var req domain.GuestChatRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.chatService.Chat(r.Context(), domain.ChatInput{
		GuestID: req.GuestID,
		Message: req.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, domain.GuestChatResponse{
		Answer:  result.Answer,
		GuestID: result.GuestID,
	})
}
