package llm

import (
	"context"

	"github.com/Rrens/chat-assistant/internal/domain"
)

// Request contains chat completion parameters. History is the full stored
// message sequence of the conversation, oldest first.
type Request struct {
	SystemPrompt string
	History      []domain.Message
	Message      string
}

// Response contains LLM generation result
type Response struct {
	Text       string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Generate produces the assistant reply for the request
	Generate(ctx context.Context, req Request, model string) (*Response, error)
}
