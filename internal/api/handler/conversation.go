package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Rrens/chat-assistant/internal/api/middleware"
	"github.com/Rrens/chat-assistant/internal/api/response"
	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ConversationService is the conversation management API
type ConversationService interface {
	Create(ctx context.Context, userID uuid.UUID) (*domain.Conversation, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	Get(ctx context.Context, userID uuid.UUID, id string) (*domain.Conversation, error)
	Rename(ctx context.Context, userID uuid.UUID, id, title string) (*domain.Conversation, error)
	Delete(ctx context.Context, userID uuid.UUID, id string) error
	Search(ctx context.Context, userID uuid.UUID, query string) ([]domain.Conversation, error)
}

// ConversationHandler handles /api/conversations
type ConversationHandler struct {
	conversationService ConversationService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversationService ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	conv, err := h.conversationService.Create(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, conv)
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	conversations, err := h.conversationService.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, conversations)
}

// Get handles GET /api/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	conv, err := h.conversationService.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, conv)
}

// Rename handles PUT /api/conversations/{id}
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.RenameRequest
	if !decode(w, r, &req) {
		return
	}

	conv, err := h.conversationService.Rename(r.Context(), userID, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, conv)
}

// Delete handles DELETE /api/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.conversationService.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, map[string]string{
		"message": "conversation deleted",
	})
}

// Search handles GET /api/conversations/search/{query}
func (h *ConversationHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	query := chi.URLParam(r, "query")
	// chi matches on the raw path when it differs from the decoded one
	if r.URL.RawPath != "" {
		if decoded, err := url.PathUnescape(query); err == nil {
			query = decoded
		}
	}

	conversations, err := h.conversationService.Search(r.Context(), userID, query)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, conversations)
}
