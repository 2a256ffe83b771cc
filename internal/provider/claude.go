package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"document-qa/internal/models"
)

var defaultClaudeModels = []string{"claude-3-5-sonnet-latest"}

type claudeProvider struct {
	baseURL string
	apiKey  string
	models  []string
}

// NewClaude returns the Anthropic backend. The API has no embedding endpoint
// and the model list comes from configuration.
func NewClaude(baseURL, apiKey string, models []string) Provider {
	if len(models) == 0 {
		models = defaultClaudeModels
	}
	return &claudeProvider{baseURL: baseURL, apiKey: apiKey, models: models}
}

func (p *claudeProvider) Kind() Kind { return Claude }

func (p *claudeProvider) Embed(context.Context, string, string) ([]float32, error) {
	return nil, models.ErrEmbeddingUnsupported
}

func (p *claudeProvider) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	llmOpts := []anthropic.Option{
		anthropic.WithToken(p.apiKey),
		anthropic.WithModel(model),
	}
	if p.baseURL != "" {
		llmOpts = append(llmOpts, anthropic.WithBaseURL(p.baseURL))
	}
	llm, err := anthropic.New(llmOpts...)
	if err != nil {
		return "", fmt.Errorf("init anthropic client: %w", err)
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	res, err := llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, callOpts...)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", errNoChoices
	}
	return res.Choices[0].Content, nil
}

func (p *claudeProvider) Models(context.Context) ([]string, error) {
	return append([]string(nil), p.models...), nil
}
