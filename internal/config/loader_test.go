package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shellm.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoaderLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		dataDir := t.TempDir()
		t.Setenv("SHELLM_DATA_DIR", dataDir)

		cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.json")).Load()
		require.NoError(t, err)

		assert.Equal(t, "close", cfg.Exec.OnEOF)
		assert.Equal(t, 5*time.Minute, cfg.Exec.WaitTimeout)
		assert.Equal(t, dataDir, cfg.DataDir)
		assert.Equal(t, filepath.Join(dataDir, "history.jsonl"), cfg.History.Path)
		assert.Equal(t, filepath.Join(dataDir, "memory.db"), cfg.Memory.DBPath)
		assert.Equal(t, filepath.Join(dataDir, "shellm.log"), cfg.Logging.File)
	})

	t.Run("file overrides merge with defaults", func(t *testing.T) {
		path := writeConfig(t, `{
			"data_dir": "/srv/shellm",
			"exec": {"wait_timeout": "30s", "on_eof": "fail"},
			"chat": {"provider": "anthropic", "model": "claude-sonnet-4"}
		}`)

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 30*time.Second, cfg.Exec.WaitTimeout)
		assert.Equal(t, "fail", cfg.Exec.OnEOF)
		assert.Equal(t, 4096, cfg.Exec.MaxTagLength)
		assert.Equal(t, "anthropic", cfg.Chat.Provider)
		assert.Equal(t, "claude-sonnet-4", cfg.Chat.Model)
		assert.Equal(t, 4096, cfg.Chat.MaxTokens)
		assert.Equal(t, "/srv/shellm/history.jsonl", cfg.History.Path)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, `{"data_dir": "/tmp/x", "chat": {"model": "from-file"}}`)
		t.Setenv("SHELLM_CHAT_MODEL", "from-env")
		t.Setenv("SHELLM_EXEC_MAX_TAG_LENGTH", "128")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Chat.Model)
		assert.Equal(t, 128, cfg.Exec.MaxTagLength)
	})

	t.Run("schema rejects wrong types", func(t *testing.T) {
		path := writeConfig(t, `{"exec": {"max_tag_length": "big"}}`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_tag_length")
	})

	t.Run("schema rejects unknown keys", func(t *testing.T) {
		path := writeConfig(t, `{"telegram": {"bot_token": "x"}}`)

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("schema rejects bad enum", func(t *testing.T) {
		path := writeConfig(t, `{"exec": {"on_eof": "retry"}}`)

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		path := writeConfig(t, "invalid json")

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shellm.json")

	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/shellm"
	cfg.Exec.WaitTimeout = 90 * time.Second
	cfg.Chat.SystemPrompt = "be brief"
	cfg.Metrics.Listen = "127.0.0.1:9464"

	loader := NewLoader(path)
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, loaded.Exec.WaitTimeout)
	assert.Equal(t, "be brief", loaded.Chat.SystemPrompt)
	assert.Equal(t, "127.0.0.1:9464", loaded.Metrics.Listen)
	assert.Equal(t, "/var/lib/shellm", loaded.DataDir)
	assert.NoError(t, loaded.Validate())
}

func TestLoaderGetConfigPath(t *testing.T) {
	assert.Equal(t, "/custom/shellm.json", NewLoader("/custom/shellm.json").GetConfigPath())

	path := NewLoader("").GetConfigPath()
	assert.Contains(t, path, filepath.Join(".shellm", "shellm.json"))
}
