package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"
)

// EnvPrefix prefixes environment overrides, e.g. SHELLM_CHAT_API_KEY
const EnvPrefix = "SHELLM"

// Loader handles configuration loading
type Loader struct {
	configPath string
	schema     gojsonschema.JSONLoader
}

// NewLoader creates a new config loader. An empty path means ~/.shellm/shellm.json.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		schema:     gojsonschema.NewStringLoader(Schema),
	}
}

// Load reads the config file if present, applies SHELLM_ environment overrides
// on top of it and fills in derived paths.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	configPath := l.GetConfigPath()
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := l.validateSchema(data); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	case os.IsNotExist(err):
		// defaults and environment only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".shellm")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "shellm.log")
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.DataDir, "history.jsonl")
	}
	if cfg.Memory.DBPath == "" {
		cfg.Memory.DBPath = filepath.Join(cfg.DataDir, "memory.db")
	}

	return cfg, nil
}

// Save writes cfg to the config path, creating its directory.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("exec.max_tag_length", cfg.Exec.MaxTagLength)
	v.Set("exec.log_path", cfg.Exec.LogPath)
	v.Set("exec.max_output_bytes", cfg.Exec.MaxOutputBytes)
	v.Set("exec.wait_timeout", cfg.Exec.WaitTimeout.String())
	v.Set("exec.on_eof", cfg.Exec.OnEOF)
	v.Set("chat", cfg.Chat)
	v.Set("history", cfg.History)
	v.Set("memory", cfg.Memory)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".shellm", "shellm.json")
}

func (l *Loader) validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(l.schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
}

// setDefaults registers every leaf key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("exec.max_tag_length", cfg.Exec.MaxTagLength)
	v.SetDefault("exec.log_path", cfg.Exec.LogPath)
	v.SetDefault("exec.max_output_bytes", cfg.Exec.MaxOutputBytes)
	v.SetDefault("exec.wait_timeout", cfg.Exec.WaitTimeout)
	v.SetDefault("exec.on_eof", cfg.Exec.OnEOF)

	v.SetDefault("chat.provider", cfg.Chat.Provider)
	v.SetDefault("chat.model", cfg.Chat.Model)
	v.SetDefault("chat.base_url", cfg.Chat.BaseURL)
	v.SetDefault("chat.api_key", cfg.Chat.APIKey)
	v.SetDefault("chat.system_prompt", cfg.Chat.SystemPrompt)
	v.SetDefault("chat.max_tokens", cfg.Chat.MaxTokens)
	v.SetDefault("chat.temperature", cfg.Chat.Temperature)

	v.SetDefault("history.enabled", cfg.History.Enabled)
	v.SetDefault("history.path", cfg.History.Path)
	v.SetDefault("history.max_messages", cfg.History.MaxMessages)

	v.SetDefault("memory.db_path", cfg.Memory.DBPath)
	v.SetDefault("memory.embedding_model", cfg.Memory.EmbeddingModel)
	v.SetDefault("memory.base_url", cfg.Memory.BaseURL)
	v.SetDefault("memory.api_key", cfg.Memory.APIKey)
	v.SetDefault("memory.limit", cfg.Memory.Limit)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)

	v.SetDefault("metrics.listen", cfg.Metrics.Listen)
	v.SetDefault("data_dir", cfg.DataDir)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
