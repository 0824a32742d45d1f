package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// LLMProvider streams a completion for a conversation
type LLMProvider interface {
	// Stream writes text deltas to w as they arrive and returns the full reply
	Stream(ctx context.Context, request LLMRequest, w io.Writer) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for an LLM call
type LLMRequest struct {
	Model        string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the accumulated response
type LLMResponse struct {
	Content string
	Usage   *TokenUsage
}

// ProviderConfig selects and configures a provider
type ProviderConfig struct {
	Provider   string // openai, anthropic
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// NewProvider creates a provider. "openai" covers every OpenAI-compatible
// server, Ollama included, through BaseURL.
func (f *ProviderFactory) NewProvider(cfg ProviderConfig) (LLMProvider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// writeDelta writes s to w, reporting the failure as a stream abort
func writeDelta(w io.Writer, s string) error {
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("failed to write stream output: %w", err)
	}
	return nil
}
