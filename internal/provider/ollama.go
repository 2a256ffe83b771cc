package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

type ollamaProvider struct {
	endpoint string
	compat   *compatClient
}

// NewOllama returns the Ollama backend. Embedding and generation go through
// the native API; models are listed through the OpenAI-compatible one at
// compatURL.
func NewOllama(endpoint, compatURL string) Provider {
	return &ollamaProvider{
		endpoint: endpoint,
		compat:   newCompatClient(compatURL, ""),
	}
}

func (p *ollamaProvider) Kind() Kind { return Ollama }

func (p *ollamaProvider) llm(model string) (*ollama.LLM, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(p.endpoint),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("init ollama client: %w", err)
	}
	return llm, nil
}

func (p *ollamaProvider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	llm, err := p.llm(model)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return embedder.EmbedQuery(ctx, text)
}

func (p *ollamaProvider) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	llm, err := p.llm(model)
	if err != nil {
		return "", err
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

func (p *ollamaProvider) Models(ctx context.Context) ([]string, error) {
	return p.compat.models(ctx)
}
