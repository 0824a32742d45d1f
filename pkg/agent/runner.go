package agent

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harun/shellm/internal/observability"
	"github.com/harun/shellm/pkg/history"
	"github.com/rs/zerolog"
)

// Runner drives one chat turn: history in, streamed reply out, history saved
type Runner struct {
	provider      LLMProvider
	history       *history.Store
	historyWindow int
	logger        zerolog.Logger
}

// Config holds runner configuration
type Config struct {
	Provider LLMProvider
	// History is optional; nil runs stateless
	History *history.Store
	// HistoryWindow limits how many stored messages are sent; 0 sends all
	HistoryWindow int
	Logger        zerolog.Logger
}

// NewRunner creates a new chat runner
func NewRunner(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	return &Runner{
		provider:      cfg.Provider,
		history:       cfg.History,
		historyWindow: cfg.HistoryWindow,
		logger:        cfg.Logger.With().Str("component", "agent").Str("provider", cfg.Provider.Provider()).Logger(),
	}, nil
}

// Run sends the prompt with prior history and streams the reply into w. The
// prompt is persisted before the request so it survives a failed stream; the
// reply is persisted once the stream completes.
func (r *Runner) Run(ctx context.Context, params RunParams, w io.Writer) (RunResult, error) {
	start := time.Now()
	success := false
	defer func() {
		observability.RecordChatRun(r.provider.Provider(), time.Since(start), success)
	}()

	if strings.TrimSpace(params.Prompt) == "" {
		return RunResult{}, ErrEmptyPrompt
	}

	useHistory := r.history != nil && !params.SkipHistory

	var messages []Message
	if useHistory {
		past, err := r.history.Tail(r.historyWindow)
		if err != nil {
			return RunResult{}, fmt.Errorf("failed to load history: %w", err)
		}
		for _, msg := range past {
			if msg.Role == history.RoleSystem {
				continue
			}
			messages = append(messages, Message{Role: msg.Role, Content: msg.Content})
		}
		if err := r.history.Append(history.Message{Role: history.RoleUser, Content: params.Prompt}); err != nil {
			return RunResult{}, fmt.Errorf("failed to save prompt: %w", err)
		}
	}
	messages = append(messages, Message{Role: history.RoleUser, Content: params.Prompt})

	r.logger.Debug().
		Str("model", params.Model).
		Int("messages", len(messages)).
		Int("estimated_tokens", EstimateTokens(messages)).
		Msg("Starting chat run")

	resp, err := r.provider.Stream(ctx, LLMRequest{
		Model:        params.Model,
		Messages:     messages,
		Temperature:  params.Temperature,
		MaxTokens:    params.MaxTokens,
		SystemPrompt: params.SystemPrompt,
	}, w)
	if err != nil {
		r.logger.Error().Err(err).Bool("retryable", IsRetryableError(err)).Msg("Chat stream failed")
		return RunResult{Duration: time.Since(start)}, fmt.Errorf("chat stream failed: %w", err)
	}

	if useHistory && resp.Content != "" {
		if err := r.history.Append(history.Message{Role: history.RoleAssistant, Content: resp.Content}); err != nil {
			return RunResult{}, fmt.Errorf("failed to save reply: %w", err)
		}
	}

	success = true
	result := RunResult{
		Content:  resp.Content,
		Usage:    resp.Usage,
		Duration: time.Since(start),
	}

	event := r.logger.Info().Dur("duration", result.Duration).Int("chars", len(resp.Content))
	if resp.Usage != nil {
		event = event.Int("input_tokens", resp.Usage.InputTokens).Int("output_tokens", resp.Usage.OutputTokens)
	}
	event.Msg("Chat run completed")

	return result, nil
}
