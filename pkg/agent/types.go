package agent

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyPrompt is returned when the prompt is blank
var ErrEmptyPrompt = errors.New("prompt is empty")

// Message is one chat turn sent to the provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// RunParams contains the input of one chat run
type RunParams struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	// SkipHistory neither reads nor writes the history store
	SkipHistory bool `json:"skip_history,omitempty"`
}

// RunResult contains the output of one chat run
type RunResult struct {
	Content  string        `json:"content"`
	Usage    *TokenUsage   `json:"usage,omitempty"`
	Duration time.Duration `json:"duration"`
}

// IsRetryableError reports whether err looks like a transient provider failure
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"econnreset", "etimedout", "connection refused", "429", "rate limit", "500", "502", "503", "504"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// EstimateTokens provides a rough token count estimation
func EstimateTokens(messages []Message) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len(msg.Content)
	}
	// 1 token ≈ 4 characters
	return (totalChars + 3) / 4
}
