package config

import (
	"errors"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"document-qa/internal/models"
)

const (
	defaultEmbeddingModel  = "nomic-embed-text:latest"
	defaultInferenceModel  = "qwen3:latest"
	defaultStoreName       = "praison"
	defaultStorePath       = ".praison"
	defaultChunkSize       = 1000
	defaultChunkOverlap    = 200
	defaultMinChunkSize    = 100
	defaultTopK            = 3
	defaultMaxPromptChars  = 16000
	defaultWorkers         = 4
	defaultMaxTokens       = 8000
	defaultEmbedTimeout    = 30 * time.Second
	defaultGenerateTimeout = 120 * time.Second
	defaultEmbedRetries    = 1
	defaultQdrantPort      = 6334
)

type Config struct {
	// Endpoint is the Ollama base URL, overridden by OLLAMA_ENDPOINT
	Endpoint   string           `yaml:"endpoint"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	OpenAI     ProviderConfig   `yaml:"openai"`
	Anthropic  ProviderConfig   `yaml:"anthropic"`
	Store      StoreConfig      `yaml:"store"`
	RAG        RAGConfig        `yaml:"rag"`
}

type EmbeddingConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
}

type GenerationConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ProviderConfig holds credentials for the hosted providers.
// Models is only consulted for providers that cannot list their models.
type ProviderConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Models  []string `yaml:"models"`
}

type StoreConfig struct {
	Backend       string `yaml:"backend"`
	Name          string `yaml:"name"`
	Path          string `yaml:"path"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
	DSN           string `yaml:"dsn"`
	Debug         bool   `yaml:"debug"`
	QdrantHost    string `yaml:"qdrant_host"`
	QdrantPort    int    `yaml:"qdrant_port"`
	QdrantAPIKey  string `yaml:"qdrant_api_key"`
	QdrantTLS     bool   `yaml:"qdrant_tls"`
}

type RAGConfig struct {
	ChunkSize      int `yaml:"chunk_size"`
	ChunkOverlap   int `yaml:"chunk_overlap"`
	MinChunkSize   int `yaml:"min_chunk_size"`
	TopK           int `yaml:"top_k"`
	MaxPromptChars int `yaml:"max_prompt_chars"`
	Workers        int `yaml:"workers"`
}

// LoadConfig reads the YAML file at path (a missing file yields defaults),
// applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &models.ConfigurationError{Field: path, Err: err}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = v
	}
	if v := os.Getenv("DOCQA_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = models.DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaultEmbeddingModel
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = defaultEmbedTimeout
	}
	if cfg.Embedding.Retries == 0 {
		cfg.Embedding.Retries = defaultEmbedRetries
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "ollama"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = defaultInferenceModel
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = defaultMaxTokens
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = defaultGenerateTimeout
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "chromem"
	}
	if cfg.Store.Name == "" {
		cfg.Store.Name = defaultStoreName
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath
	}
	if cfg.Store.QdrantHost == "" {
		cfg.Store.QdrantHost = "localhost"
	}
	if cfg.Store.QdrantPort == 0 {
		cfg.Store.QdrantPort = defaultQdrantPort
	}

	// size and overlap default together so an explicit overlap of 0 survives
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
		if cfg.RAG.ChunkOverlap == 0 {
			cfg.RAG.ChunkOverlap = defaultChunkOverlap
		}
	}
	if cfg.RAG.MinChunkSize == 0 {
		cfg.RAG.MinChunkSize = min(defaultMinChunkSize, cfg.RAG.ChunkSize/2)
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.MaxPromptChars == 0 {
		cfg.RAG.MaxPromptChars = defaultMaxPromptChars
	}
	if cfg.RAG.Workers == 0 {
		cfg.RAG.Workers = defaultWorkers
	}
}

// Validate returns a *models.ConfigurationError describing the first problem found.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return models.NewConfigError("endpoint", "missing model endpoint URL (set OLLAMA_ENDPOINT)")
	}
	if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return models.NewConfigError("endpoint", "invalid URL %q", c.Endpoint)
	}

	switch c.Embedding.Provider {
	case "ollama", "openai":
	case "claude", "anthropic":
		return models.NewConfigError("embedding.provider", "%s does not offer embeddings", c.Embedding.Provider)
	default:
		return models.NewConfigError("embedding.provider", "unknown provider %q", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case "ollama", "openai", "claude", "anthropic":
	default:
		return models.NewConfigError("generation.provider", "unknown provider %q", c.Generation.Provider)
	}
	if c.Embedding.Retries < 0 {
		return models.NewConfigError("embedding.retries", "must not be negative")
	}

	switch c.Store.Backend {
	case "chromem":
		if key := c.Store.EncryptionKey; key != "" && len(key) != 32 {
			return models.NewConfigError("store.encryption_key", "must be 32 bytes, got %d", len(key))
		}
	case "pgvector":
		if c.Store.DSN == "" {
			return models.NewConfigError("store.dsn", "required for the pgvector backend")
		}
	case "qdrant":
	default:
		return models.NewConfigError("store.backend", "unknown backend %q", c.Store.Backend)
	}

	r := c.RAG
	if r.ChunkSize <= 0 {
		return models.NewConfigError("rag.chunk_size", "must be positive")
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return models.NewConfigError("rag.chunk_overlap", "must be in [0, chunk_size), got %d", r.ChunkOverlap)
	}
	if r.MinChunkSize < 0 || r.MinChunkSize > r.ChunkSize {
		return models.NewConfigError("rag.min_chunk_size", "must be in [0, chunk_size], got %d", r.MinChunkSize)
	}
	if r.TopK < 0 {
		return models.NewConfigError("rag.top_k", "must not be negative")
	}
	if r.MaxPromptChars <= 0 {
		return models.NewConfigError("rag.max_prompt_chars", "must be positive")
	}
	return nil
}

// OpenAICompatibleURL is the Ollama endpoint's OpenAI-compatible base.
func (c *Config) OpenAICompatibleURL() string {
	return c.Endpoint + "/v1/"
}
