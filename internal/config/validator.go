package config

import (
	"fmt"
	"slices"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProvider checks the chat provider name
func (v *Validator) ValidateProvider(provider string) error {
	return oneOf("chat provider", provider, "openai", "anthropic")
}

// ValidateOnEOF checks the end-of-stream policy
func (v *Validator) ValidateOnEOF(policy string) error {
	return oneOf("exec on_eof", policy, "close", "fail")
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	return oneOf("log level", level, "debug", "info", "warn", "error")
}

// ValidateAPIKey checks the key prefix when the provider is Anthropic. OpenAI
// compatible servers such as Ollama accept any key, including none.
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if provider == "anthropic" && key != "" && !strings.HasPrefix(key, "sk-ant-") {
		return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateConfig returns every problem found in cfg
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(v.ValidateOnEOF(cfg.Exec.OnEOF))
	if cfg.Exec.MaxOutputBytes <= 0 {
		add(fmt.Errorf("exec max_output_bytes must be positive, got %d", cfg.Exec.MaxOutputBytes))
	}
	if cfg.Exec.WaitTimeout < 0 {
		add(fmt.Errorf("exec wait_timeout must be >= 0, got %s", cfg.Exec.WaitTimeout))
	}

	add(v.ValidateProvider(cfg.Chat.Provider))
	if strings.TrimSpace(cfg.Chat.Model) == "" {
		add(fmt.Errorf("chat model is required"))
	}
	add(v.ValidateAPIKey(cfg.Chat.APIKey, cfg.Chat.Provider))
	add(v.ValidateTemperature(cfg.Chat.Temperature))
	add(v.ValidateMaxTokens(cfg.Chat.MaxTokens))

	if cfg.History.MaxMessages < 0 {
		add(fmt.Errorf("history max_messages must be >= 0, got %d", cfg.History.MaxMessages))
	}

	if strings.TrimSpace(cfg.Memory.EmbeddingModel) == "" {
		add(fmt.Errorf("memory embedding_model is required"))
	}
	if cfg.Memory.Limit <= 0 {
		add(fmt.Errorf("memory limit must be positive, got %d", cfg.Memory.Limit))
	}

	add(v.ValidateLogLevel(cfg.Logging.Level))

	return errs
}

func oneOf(name, value string, valid ...string) error {
	if slices.Contains(valid, value) {
		return nil
	}
	return fmt.Errorf("invalid %s: %q (must be one of: %s)", name, value, strings.Join(valid, ", "))
}
