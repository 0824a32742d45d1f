package config

import (
	"encoding/json"
	"errors"
	"time"
)

// Config is the shellm configuration
type Config struct {
	// Exec configures the function tag executor
	Exec ExecConfig `json:"exec" mapstructure:"exec"`

	// Chat configures the model provider
	Chat ChatConfig `json:"chat" mapstructure:"chat"`

	History HistoryConfig `json:"history" mapstructure:"history"`
	Memory  MemoryConfig  `json:"memory" mapstructure:"memory"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory, defaults to ~/.shellm
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ExecConfig holds executor settings
type ExecConfig struct {
	MaxTagLength   int           `json:"max_tag_length" mapstructure:"max_tag_length"`
	LogPath        string        `json:"log_path" mapstructure:"log_path"` // relative to the working directory
	MaxOutputBytes int           `json:"max_output_bytes" mapstructure:"max_output_bytes"`
	WaitTimeout    time.Duration `json:"wait_timeout" mapstructure:"wait_timeout"` // 0 waits forever
	OnEOF          string        `json:"on_eof" mapstructure:"on_eof"`             // close, fail
}

// ChatConfig holds model provider settings
type ChatConfig struct {
	Provider     string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	Model        string  `json:"model" mapstructure:"model"`
	BaseURL      string  `json:"base_url" mapstructure:"base_url"`
	APIKey       string  `json:"api_key" mapstructure:"api_key"`
	SystemPrompt string  `json:"system_prompt" mapstructure:"system_prompt"`
	MaxTokens    int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature  float64 `json:"temperature" mapstructure:"temperature"`
}

// HistoryConfig holds chat history settings
type HistoryConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Path        string `json:"path" mapstructure:"path"`
	MaxMessages int    `json:"max_messages" mapstructure:"max_messages"` // 0 keeps everything
}

// MemoryConfig holds memorize/recall settings
type MemoryConfig struct {
	DBPath         string `json:"db_path" mapstructure:"db_path"`
	EmbeddingModel string `json:"embedding_model" mapstructure:"embedding_model"`
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	APIKey         string `json:"api_key" mapstructure:"api_key"`
	Limit          int    `json:"limit" mapstructure:"limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the prometheus listener address; empty disables it
type MetricsConfig struct {
	Listen string `json:"listen" mapstructure:"listen"`
}

// DefaultConfig targets a local Ollama server through its OpenAI-compatible API.
func DefaultConfig() *Config {
	return &Config{
		Exec: ExecConfig{
			MaxTagLength:   4096,
			LogPath:        "execution.log",
			MaxOutputBytes: 64 * 1024,
			WaitTimeout:    5 * time.Minute,
			OnEOF:          "close",
		},
		Chat: ChatConfig{
			Provider:    "openai",
			Model:       "gemma2:27b",
			BaseURL:     "http://localhost:11434/v1",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		History: HistoryConfig{
			Enabled:     true,
			MaxMessages: 200,
		},
		Memory: MemoryConfig{
			EmbeddingModel: "nomic-embed-text",
			BaseURL:        "http://localhost:11434/v1",
			Limit:          5,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   false,
			Pretty:    true,
			MaxSize:   10,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config with API keys masked
func (c *Config) String() string {
	masked := *c
	if masked.Chat.APIKey != "" {
		masked.Chat.APIKey = "********"
	}
	if masked.Memory.APIKey != "" {
		masked.Memory.APIKey = "********"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks enums and ranges
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
