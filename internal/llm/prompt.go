package llm

import (
	"strings"

	"github.com/Rrens/chat-assistant/internal/domain"
)

// Role names shared by the OpenAI-compatible and Ollama chat APIs
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a role-tagged turn sent to a provider
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildMessages flattens a request into the role-tagged list most chat APIs
// accept: an optional system instruction, the stored history in order, then
// the new user message.
func BuildMessages(req Request) []ChatMessage {
	messages := make([]ChatMessage, 0, len(req.History)+2)

	if prompt := strings.TrimSpace(req.SystemPrompt); prompt != "" {
		messages = append(messages, ChatMessage{Role: RoleSystem, Content: prompt})
	}

	for _, m := range req.History {
		messages = append(messages, ChatMessage{Role: RoleFor(m.Sender), Content: m.Content})
	}

	messages = append(messages, ChatMessage{Role: RoleUser, Content: req.Message})
	return messages
}

// RoleFor maps a stored sender to a chat role
func RoleFor(sender domain.Sender) string {
	if sender == domain.SenderAssistant {
		return RoleAssistant
	}
	return RoleUser
}
