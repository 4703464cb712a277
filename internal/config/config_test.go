package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 800, cfg.Corpus.ChunkSize)
	assert.Equal(t, 120, cfg.Corpus.ChunkOverlap)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.OpenAIModel)
	assert.Equal(t, "gpt-4o-mini", cfg.Generation.OpenAIModel)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Corpus.Dir, cfg.Corpus.Dir)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".briefsmith"), 0755))

	yaml := "corpus:\n  dir: my/docs\n  chunk_size: 400\nlogging:\n  debug_mode: true\n  level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".briefsmith", "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, "my/docs", cfg.Corpus.Dir)
	assert.Equal(t, 400, cfg.Corpus.ChunkSize)
	assert.True(t, cfg.Logging.DebugMode)
	// Untouched sections keep defaults.
	assert.Equal(t, 120, cfg.Corpus.ChunkOverlap)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".briefsmith"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".briefsmith", "config.yaml"), []byte("corpus: ["), 0644))

	_, err := Load(ws)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("BRIEFSMITH_EMBEDDING_PROVIDER", "ollama")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Embedding.OpenAIAPIKey)
	assert.Equal(t, "sk-test", cfg.Generation.OpenAIAPIKey)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
}
