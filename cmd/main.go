package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/llmservice"
	"document-qa/internal/provider"
	"document-qa/internal/rag"
	"document-qa/internal/vectorstore"
)

const configFilePath = "./configs/config.yaml"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about a folder of local documents",
	Long: `docqa indexes the PDF, Markdown and text files of a directory into a
local vector store and answers questions from them with a language model.

Environment variables:
  OLLAMA_ENDPOINT    Ollama base URL (default: http://127.0.0.1:11434)
  OPENAI_API_KEY     enables openai/ models
  ANTHROPIC_API_KEY  enables claude/ models
  DOCQA_STORE_DSN    PostgreSQL DSN for the pgvector backend`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configFilePath, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(1)
	}
}

func setupLogger(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
	return nil
}

// app holds the components a command needs. The store is opened only by
// commands that touch it; without one, rag serves chat only.
type app struct {
	cfg    *config.Config
	llm    *llmservice.Client
	router *provider.Router
	store  vectorstore.Store
	rag    *rag.RAG
}

func newApp(withStore bool) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("endpoint", cfg.Endpoint).Str("backend", cfg.Store.Backend).Msg("Loaded config")

	router, err := provider.NewRouter(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		router: router,
		llm:    llmservice.NewClient(router, cfg.Generation),
	}
	if !withStore {
		a.rag = rag.NewRAG(nil, nil, a.llm, cfg)
		return a, nil
	}

	kind, err := provider.ParseKind(cfg.Embedding.Provider)
	if err != nil {
		return nil, err
	}
	backend, err := router.Get(kind)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Backend == "chromem" {
		if err := helper.CreateFolder(cfg.Store.Path); err != nil {
			return nil, err
		}
	}
	store, err := vectorstore.Open(context.Background(), cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = store
	emb := embedding.NewClient(backend, cfg.Embedding)
	log.Debug().Str("provider", string(kind)).Str("model", emb.Model()).Msg("Embedding client ready")
	a.rag = rag.NewRAG(store, emb, a.llm, cfg)
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing store")
		}
	}
}
