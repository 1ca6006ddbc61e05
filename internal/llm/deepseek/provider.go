package deepseek

import (
	"github.com/Rrens/chat-assistant/internal/llm/openai"
)

const baseURL = "https://api.deepseek.com/v1"

// Provider implements llm.Provider for DeepSeek, whose API is OpenAI-compatible
type Provider struct {
	*openai.Provider
}

// NewProvider creates a new DeepSeek provider
func NewProvider(apiKey, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	return &Provider{Provider: openai.NewProvider(apiKey, defaultModel).WithName("deepseek").WithBaseURL(baseURL)}
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"deepseek-chat",
		"deepseek-reasoner",
	}
}
