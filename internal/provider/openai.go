package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// compatClient talks to any OpenAI-compatible API, including Ollama's /v1 surface.
type compatClient struct {
	client openai.Client
}

func newCompatClient(baseURL, apiKey string) *compatClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if apiKey == "" {
		// Ollama ignores the key but the client insists on sending one
		apiKey = "ollama"
	}
	return &compatClient{client: openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)}
}

func (c *compatClient) models(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	var names []string
	for page != nil {
		for _, m := range page.Data {
			names = append(names, m.ID)
		}
		page, err = page.GetNextPage()
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
	}
	return names, nil
}

type openAIProvider struct {
	*compatClient
}

// NewOpenAI returns the OpenAI backend. baseURL defaults to the public API.
func NewOpenAI(baseURL, apiKey string) Provider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/"
	}
	return &openAIProvider{newCompatClient(baseURL, apiKey)}
}

func (p *openAIProvider) Kind() Kind { return OpenAI }

func (p *openAIProvider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

func (p *openAIProvider) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *openAIProvider) Models(ctx context.Context) ([]string, error) {
	return p.models(ctx)
}
