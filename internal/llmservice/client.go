package llmservice

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/models"
	"document-qa/internal/provider"
)

var thinkTag = regexp.MustCompile(models.ThinkTag)

// Client generates answers through the provider a model name resolves to.
type Client struct {
	router  *provider.Router
	opts    provider.GenerateOptions
	timeout time.Duration
}

func NewClient(router *provider.Router, cfg config.GenerationConfig) *Client {
	return &Client{
		router: router,
		opts: provider.GenerateOptions{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		timeout: cfg.Timeout,
	}
}

// GenerateContent makes a single attempt bounded by the generation timeout.
// Reasoning blocks are stripped from the answer and an empty answer becomes
// models.NoResponse.
func (c *Client) GenerateContent(ctx context.Context, model, prompt string) (string, error) {
	p, name, err := c.router.Resolve(model)
	if err != nil {
		return "", err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := p.Generate(ctx, name, prompt, c.opts)
	if err != nil {
		return "", &models.GenerationServiceError{Model: model, Err: err}
	}
	log.Debug().
		Str("provider", string(p.Kind())).
		Str("model", name).
		Int("prompt_chars", len([]rune(prompt))).
		Dur("took", time.Since(start)).
		Msg("Generated content")

	out = strings.TrimSpace(thinkTag.ReplaceAllString(out, ""))
	if out == "" {
		return models.NoResponse, nil
	}
	return out, nil
}

// Models lists the models available across configured providers.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	return c.router.Models(ctx)
}

// ValidateModel fails with a *models.ConfigurationError unless model is listed.
func (c *Client) ValidateModel(ctx context.Context, model string) error {
	names, err := c.Models(ctx)
	if err != nil {
		return &models.ConfigurationError{Field: "generation.model", Err: err}
	}
	if len(names) == 0 {
		return models.NewConfigError("generation.model", "no models available")
	}
	if !slices.Contains(names, model) {
		return models.NewConfigError("generation.model", "model %q is not available", model)
	}
	return nil
}
