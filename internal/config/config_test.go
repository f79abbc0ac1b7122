package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/lawless-ai/internal/config"
)

func TestDefaultsInLocalMode(t *testing.T) {
	cfg, err := config.Parse(config.New())
	require.NoError(t, err)

	assert.Equal(t, config.ModeLocal, cfg.Mode)
	assert.Equal(t, config.StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, config.CompletionMock, cfg.Completion.Backend)
	assert.Equal(t, 10, cfg.Completion.HistoryLimit)
	assert.Equal(t, 120*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, "huggingfaceh4/zephyr-7b-beta", cfg.Completion.Model)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LAWLESS_STORAGE_BACKEND", "postgres")
	t.Setenv("LAWLESS_STORAGE_DSN", "postgres://localhost/lawless")
	t.Setenv("LAWLESS_COMPLETION_BACKEND", "openai")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("LAWLESS_COMPLETION_HISTORY_LIMIT", "4")

	cfg, err := config.Parse(config.New())
	require.NoError(t, err)

	assert.Equal(t, config.StoragePostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://localhost/lawless", cfg.Storage.DSN)
	assert.Equal(t, config.CompletionOpenAI, cfg.Completion.Backend)
	assert.Equal(t, "sk-test", cfg.Completion.APIKey)
	assert.Equal(t, 4, cfg.Completion.HistoryLimit)
}

func TestRemoteModeRequiresCredentials(t *testing.T) {
	t.Setenv("LAWLESS_MODE", "remote")

	_, err := config.Parse(config.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.dsn")
}

func TestUnknownBackendIsRejected(t *testing.T) {
	t.Setenv("LAWLESS_STORAGE_BACKEND", "dynamo")

	_, err := config.Parse(config.New())
	require.Error(t, err)
}

func TestLoadReadsConfigFile(t *testing.T) {
	t.Setenv("PORT", "")
	dir := t.TempDir()
	yaml := []byte("port: \"9090\"\ncompletion:\n  model: gpt-4o-mini\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lawless.yaml"), yaml, 0o600))

	v := config.New()
	v.AddConfigPath(dir)

	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.Completion.Model)
}

func TestVertexGetsGeminiModelByDefault(t *testing.T) {
	t.Setenv("LAWLESS_COMPLETION_BACKEND", "vertex")
	t.Setenv("LAWLESS_COMPLETION_GCP_PROJECT", "lawless-dev")

	cfg, err := config.Parse(config.New())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultVertexModel, cfg.Completion.Model)
}
