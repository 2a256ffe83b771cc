package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// Backend is the slice of a model provider the client needs.
type Backend interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Client embeds text with one model, retrying transient failures.
type Client struct {
	backend  Backend
	model    string
	timeout  time.Duration
	retries  int
	interval time.Duration

	mu  sync.Mutex
	dim int
}

// NewClient creates an embedding client for the configured model
func NewClient(backend Backend, cfg config.EmbeddingConfig) *Client {
	return &Client{
		backend:  backend,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		retries:  cfg.Retries,
		interval: 500 * time.Millisecond,
	}
}

// WithInterval sets the initial backoff interval between attempts.
func (c *Client) WithInterval(d time.Duration) *Client {
	c.interval = d
	return c
}

func (c *Client) Model() string { return c.model }

// Embed returns the vector for text. Every attempt is bounded by the
// configured timeout; transport failures are retried with exponential
// backoff, malformed vectors are not. All failures are
// *models.EmbeddingServiceError.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var (
		vec      []float32
		attempts int
	)
	operation := func() error {
		attempts++
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		defer cancel()

		v, err := c.backend.Embed(callCtx, c.model, text)
		if err != nil {
			if errors.Is(err, models.ErrEmbeddingUnsupported) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := c.check(v); err != nil {
			return backoff.Permanent(err)
		}
		vec = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.retries, 0))), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("model", c.model).Dur("retry_in", wait).Msg("Embedding failed, retrying")
	})
	if err != nil {
		return nil, &models.EmbeddingServiceError{Model: c.model, Attempts: attempts, Err: err}
	}
	return vec, nil
}

// check rejects empty vectors, non-finite components and vectors whose
// length differs from the first one seen.
func (c *Client) check(v []float32) error {
	if len(v) == 0 {
		return errors.New("malformed response: empty vector")
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("malformed response: non-finite component at %d", i)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dim == 0 {
		c.dim = len(v)
	} else if len(v) != c.dim {
		return fmt.Errorf("malformed response: dimension %d, expected %d", len(v), c.dim)
	}
	return nil
}

// GenerateEmbedding embeds every chunk. The first failure aborts the batch.
func (c *Client) GenerateEmbedding(ctx context.Context, chunks []models.Chunk) ([]models.IndexEntry, error) {
	if len(chunks) == 0 {
		log.Debug().Msg("No chunks to embed")
		return nil, nil
	}

	entries := make([]models.IndexEntry, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := c.Embed(ctx, chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("embed %s chunk %d: %w", chunk.Source, chunk.Index, err)
		}
		entries = append(entries, models.IndexEntry{
			ID:     helper.EntryID(chunk.Source, chunk.Index),
			Vector: vec,
			Text:   chunk.Text,
			Metadata: models.EntryMetadata{
				Source:     chunk.Source,
				ChunkIndex: chunk.Index,
				Title:      chunk.Title,
				DocType:    chunk.Type,
			},
		})
	}
	return entries, nil
}
