package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OLLAMA_ENDPOINT", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, models.DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, defaultEmbeddingModel, cfg.Embedding.Model)
	assert.Equal(t, defaultInferenceModel, cfg.Generation.Model)
	assert.Equal(t, "chromem", cfg.Store.Backend)
	assert.Equal(t, defaultStoreName, cfg.Store.Name)
	assert.Equal(t, defaultChunkSize, cfg.RAG.ChunkSize)
	assert.Equal(t, defaultChunkOverlap, cfg.RAG.ChunkOverlap)
	assert.Equal(t, defaultTopK, cfg.RAG.TopK)
	assert.Equal(t, 1, cfg.Embedding.Retries)
	assert.Equal(t, "http://127.0.0.1:11434/v1/", cfg.OpenAICompatibleURL())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Setenv("OLLAMA_ENDPOINT", "http://ollama.local:11434/")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path := writeConfig(t, `
endpoint: http://ignored:1
embedding:
  model: all-minilm
  timeout: 5s
generation:
  provider: claude
  model: claude-3-5-sonnet-latest
rag:
  chunk_size: 400
  chunk_overlap: 0
  top_k: 7
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://ollama.local:11434", cfg.Endpoint)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "all-minilm", cfg.Embedding.Model)
	assert.Equal(t, 5*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "claude", cfg.Generation.Provider)
	assert.Equal(t, 400, cfg.RAG.ChunkSize)
	assert.Equal(t, 0, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 100, cfg.RAG.MinChunkSize)
	assert.Equal(t, 7, cfg.RAG.TopK)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint"},
		{"bad endpoint", func(c *Config) { c.Endpoint = "localhost" }, "endpoint"},
		{"claude embeddings", func(c *Config) { c.Embedding.Provider = "claude" }, "embedding.provider"},
		{"unknown generator", func(c *Config) { c.Generation.Provider = "llamacpp" }, "generation.provider"},
		{"overlap too large", func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize }, "rag.chunk_overlap"},
		{"pgvector without dsn", func(c *Config) { c.Store.Backend = "pgvector" }, "store.dsn"},
		{"short encryption key", func(c *Config) { c.Store.EncryptionKey = "short" }, "store.encryption_key"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "faiss" }, "store.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			var cfgErr *models.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "rag: [unterminated")
	_, err := LoadConfig(path)
	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
