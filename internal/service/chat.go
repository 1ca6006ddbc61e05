package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Rrens/chat-assistant/internal/config"
	"github.com/Rrens/chat-assistant/internal/domain"
	"github.com/Rrens/chat-assistant/internal/llm"
	"github.com/rs/zerolog/log"
)

// ChatService runs one chat turn: resolve the conversation, ask the model,
// then persist the user/assistant pair.
type ChatService struct {
	conversations  domain.ConversationStore
	guests         domain.GuestConversationStore
	provider       llm.Provider
	claims         domain.ClaimStore
	systemPrompt   string
	persistTimeout time.Duration
	now            func() time.Time
}

// NewChatService creates a new chat service. claims may be nil, in which case
// idempotency keys are ignored.
func NewChatService(
	conversations domain.ConversationStore,
	guests domain.GuestConversationStore,
	provider llm.Provider,
	claims domain.ClaimStore,
	cfg config.ChatConfig,
) *ChatService {
	return &ChatService{
		conversations:  conversations,
		guests:         guests,
		provider:       provider,
		claims:         claims,
		systemPrompt:   cfg.SystemPrompt,
		persistTimeout: cfg.PersistTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Chat handles one authenticated or guest turn
func (s *ChatService) Chat(ctx context.Context, in domain.ChatInput) (*domain.ChatResult, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	var (
		conv  *domain.Conversation
		store domain.ConversationStore
		owner string
		err   error
	)

	if in.IsGuest() {
		owner = in.GuestID
		if strings.TrimSpace(owner) == "" {
			return nil, &domain.ValidationError{Field: "guestId", Message: "must not be empty"}
		}
		store = s.guests
		conv, err = s.guests.FindOrCreate(ctx, owner)
		if err != nil {
			return nil, storageError("load guest conversation", err)
		}
	} else {
		owner = in.UserID.String()
		store = s.conversations
		conv, err = s.resolve(ctx, owner, in)
		if err != nil {
			return nil, err
		}
	}

	receivedAt := s.now()

	resp, err := s.provider.Generate(ctx, llm.Request{
		SystemPrompt: s.systemPrompt,
		History:      conv.Messages,
		Message:      in.Message,
	}, s.provider.DefaultModel())
	if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
		err = errors.New("empty reply")
	}
	if err != nil {
		log.Error().Err(err).
			Str("provider", s.provider.Name()).
			Str("conversation_id", conv.ID).
			Msg("language model call failed")
		return nil, &domain.UpstreamError{Reason: domain.UpstreamLLMUnavailable, Err: err}
	}

	messages := s.turn(conv, in.Message, receivedAt, resp.Text)

	// The pair is written even if the caller has gone away, so a cancelled
	// request leaves either both messages or neither.
	persistCtx := context.WithoutCancel(ctx)
	if s.persistTimeout > 0 {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(persistCtx, s.persistTimeout)
		defer cancel()
	}

	if _, err := store.AppendMessages(persistCtx, conv.ID, owner, messages); err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("failed to persist chat turn")
		return nil, storageError("save messages", err)
	}

	log.Info().
		Str("conversation_id", conv.ID).
		Bool("guest", in.IsGuest()).
		Str("model", resp.Model).
		Int("tokens_used", resp.TokensUsed).
		Int64("latency_ms", resp.LatencyMs).
		Msg("chat turn completed")

	result := &domain.ChatResult{Answer: resp.Text}
	if in.IsGuest() {
		result.GuestID = owner
	} else {
		result.ConversationID = conv.ID
	}
	return result, nil
}

// resolve finds the target conversation of an authenticated turn
func (s *ChatService) resolve(ctx context.Context, owner string, in domain.ChatInput) (*domain.Conversation, error) {
	if id := strings.TrimSpace(in.ConversationID); id != "" {
		conv, err := s.conversations.GetByID(ctx, id, owner)
		if err != nil {
			return nil, storageError("load conversation", err)
		}
		return conv, nil
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || s.claims == nil {
		return s.create(ctx, owner)
	}

	return s.claim(ctx, owner, key)
}

// claim makes concurrent first turns that carry the same idempotency key
// converge on a single conversation. Claim store failures fall back to a
// plain create.
func (s *ChatService) claim(ctx context.Context, owner, key string) (*domain.Conversation, error) {
	claimedID, err := s.claims.Lookup(ctx, owner, key)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency lookup failed, creating conversation without claim")
		return s.create(ctx, owner)
	}
	if claimedID != "" {
		conv, err := s.conversations.GetByID(ctx, claimedID, owner)
		if err != nil {
			return nil, storageError("load conversation", err)
		}
		return conv, nil
	}

	conv, err := s.create(ctx, owner)
	if err != nil {
		return nil, err
	}

	winner, err := s.claims.Claim(ctx, owner, key, conv.ID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("idempotency claim failed")
		return conv, nil
	}
	if winner == conv.ID {
		return conv, nil
	}

	if _, err := s.conversations.Delete(ctx, conv.ID, owner); err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("failed to remove conversation that lost idempotency claim")
	}

	existing, err := s.conversations.GetByID(ctx, winner, owner)
	if err != nil {
		return nil, storageError("load conversation", err)
	}
	return existing, nil
}

func (s *ChatService) create(ctx context.Context, owner string) (*domain.Conversation, error) {
	conv, err := s.conversations.Create(ctx, owner)
	if err != nil {
		return nil, storageError("create conversation", err)
	}
	return conv, nil
}

// turn builds the user/assistant pair with timestamps that never go back
// past the last stored message.
func (s *ChatService) turn(conv *domain.Conversation, question string, receivedAt time.Time, answer string) []domain.Message {
	userAt := receivedAt
	if last, ok := conv.LastMessage(); ok && userAt.Before(last.Timestamp) {
		userAt = last.Timestamp
	}

	answeredAt := s.now()
	if answeredAt.Before(userAt) {
		answeredAt = userAt
	}

	return []domain.Message{
		{Sender: domain.SenderUser, Content: question, Timestamp: userAt},
		{Sender: domain.SenderAssistant, Content: answer, Timestamp: answeredAt},
	}
}

// storageError keeps typed domain errors and wraps everything else
func storageError(op string, err error) error {
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}
