package rag

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/vectorstore"
)

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateEmbedding(ctx context.Context, chunks []models.Chunk) ([]models.IndexEntry, error)
}

// Generator produces an answer for a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, model, prompt string) (string, error)
}

type RAG struct {
	loader    *parser.Loader
	chunker   *parser.Chunker
	embedder  Embedder
	store     vectorstore.Store
	generator Generator
	cfg       config.RAGConfig
	model     string

	indexing atomic.Bool
}

// NewRAG wires the pipeline. A nil store and embedder give a RAG that only
// serves Chat.
func NewRAG(store vectorstore.Store, embedder Embedder, generator Generator, cfg *config.Config) *RAG {
	return &RAG{
		loader:    parser.NewLoader(cfg.RAG.Workers),
		chunker:   parser.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.MinChunkSize),
		embedder:  embedder,
		store:     store,
		generator: generator,
		cfg:       cfg.RAG,
		model:     cfg.Generation.Model,
	}
}

// Indexing reports whether an upload is running
func (r *RAG) Indexing() bool { return r.indexing.Load() }

type FailedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// IndexReport summarises one upload.
type IndexReport struct {
	Root     string        `json:"root"`
	RunID    string        `json:"run_id"`
	Files    int           `json:"files"`
	Indexed  int           `json:"indexed"`
	Chunks   int           `json:"chunks"`
	Failed   []FailedFile  `json:"failed,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Index loads every supported file under root, chunks and embeds it, and
// replaces the file's entries in the store. Unreadable files are recorded in
// the report and skipped; an embedding or store failure aborts the upload and
// leaves files indexed so far in place. Cancellation is checked between files.
func (r *RAG) Index(ctx context.Context, root string) (*IndexReport, error) {
	if !r.indexing.CompareAndSwap(false, true) {
		return nil, models.ErrBusy
	}
	defer r.indexing.Store(false)

	runID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	report := &IndexReport{Root: root, RunID: runID}
	logger := log.With().Str("run_id", runID).Logger()
	logger.Info().Str("root", root).Msg("Indexing documents")

	for doc, err := range r.loader.Documents(ctx, root) {
		if err != nil {
			var unreadable *models.UnreadableFileError
			if errors.As(err, &unreadable) {
				report.Files++
				report.Failed = append(report.Failed, FailedFile{Path: unreadable.Path, Reason: unreadable.Err.Error()})
				continue
			}
			return report, err
		}
		report.Files++
		if err := ctx.Err(); err != nil {
			return report, err
		}

		n, err := r.indexDocument(ctx, doc)
		if err != nil {
			return report, err
		}
		report.Indexed++
		report.Chunks += n
		logger.Info().Str("path", doc.Path).Int("chunks", n).Msg("Indexed document")
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	logger.Info().
		Int("indexed", report.Indexed).
		Int("failed", len(report.Failed)).
		Int("chunks", report.Chunks).
		Dur("took", report.Duration).
		Msg("Indexing finished")
	return report, nil
}

func (r *RAG) indexDocument(ctx context.Context, doc models.Document) (int, error) {
	chunks := r.chunker.Split(doc)
	entries, err := r.embedder.GenerateEmbedding(ctx, chunks)
	if err != nil {
		return 0, err
	}
	// upsert before pruning so a failed write leaves the previous version
	if err := r.store.Upsert(ctx, entries); err != nil {
		return 0, err
	}
	if err := r.store.DeleteSource(ctx, doc.Path, len(entries)); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Retrieve returns the chunks closest to the query in store order.
func (r *RAG) Retrieve(ctx context.Context, q models.Query) ([]models.ScoredEntry, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	vec, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	return r.store.Query(ctx, vec, topK)
}

// Query answers a question from the indexed documents with a single
// generation call.
func (r *RAG) Query(ctx context.Context, q models.Query) (*models.Answer, error) {
	if r.Indexing() {
		return nil, models.ErrBusy
	}
	n, err := r.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, models.ErrEmptyStore
	}

	hits, err := r.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	prompt := AssemblePrompt(q.Text, hits, r.cfg.MaxPromptChars)
	if prompt.Dropped > 0 {
		log.Warn().Int("dropped", prompt.Dropped).Int("max_chars", r.cfg.MaxPromptChars).Msg("Prompt too long, dropped context chunks")
	}

	model := r.modelOrDefault(q.Model)
	text, err := r.generator.GenerateContent(ctx, model, prompt.Text)
	if err != nil {
		return nil, err
	}

	answer := &models.Answer{Query: q.Text, Model: model, Text: text, Dropped: prompt.Dropped}
	if q.WithSources {
		for _, hit := range prompt.Used {
			answer.Sources = append(answer.Sources, models.Source{
				Path:       hit.Entry.Metadata.Source,
				ChunkIndex: hit.Entry.Metadata.ChunkIndex,
				Distance:   hit.Distance,
				Text:       hit.Entry.Text,
			})
		}
	}
	return answer, nil
}

// Chat answers without consulting the documents.
func (r *RAG) Chat(ctx context.Context, model, text string) (*models.Answer, error) {
	model = r.modelOrDefault(model)
	out, err := r.generator.GenerateContent(ctx, model, fmt.Sprintf(models.ChatPromptTemplate, text))
	if err != nil {
		return nil, err
	}
	return &models.Answer{Query: text, Model: model, Text: out}, nil
}

// Clear removes every entry from the store
func (r *RAG) Clear(ctx context.Context) error {
	if r.Indexing() {
		return models.ErrBusy
	}
	return r.store.Clear(ctx)
}

func (r *RAG) modelOrDefault(model string) string {
	if model == "" {
		return r.model
	}
	return model
}
