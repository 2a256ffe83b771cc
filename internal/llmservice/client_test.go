package llmservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/config"
	"document-qa/internal/models"
	"document-qa/internal/provider"
)

type stubProvider struct {
	kind   provider.Kind
	answer string
	err    error
	block  bool
	models []string

	gotModel string
	gotOpts  provider.GenerateOptions
	calls    int
}

func (s *stubProvider) Kind() provider.Kind { return s.kind }

func (s *stubProvider) Embed(context.Context, string, string) ([]float32, error) {
	return nil, models.ErrEmbeddingUnsupported
}

func (s *stubProvider) Generate(ctx context.Context, model, _ string, opts provider.GenerateOptions) (string, error) {
	s.calls++
	s.gotModel = model
	s.gotOpts = opts
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.answer, s.err
}

func (s *stubProvider) Models(context.Context) ([]string, error) { return s.models, nil }

func newTestClient(t *testing.T, ps ...provider.Provider) *Client {
	t.Helper()
	r, err := provider.NewRouterFrom(provider.Ollama, ps...)
	require.NoError(t, err)
	return NewClient(r, config.GenerationConfig{Temperature: 0, MaxTokens: 8000, Timeout: 50 * time.Millisecond})
}

func TestGenerateContent_StripsReasoning(t *testing.T) {
	p := &stubProvider{kind: provider.Ollama, answer: "<think>\nlet me see\n</think>\n\nParis."}
	out, err := newTestClient(t, p).GenerateContent(context.Background(), "qwen3:latest", "capital?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", out)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, 8000, p.gotOpts.MaxTokens)
}

func TestGenerateContent_EmptyAnswer(t *testing.T) {
	p := &stubProvider{kind: provider.Ollama, answer: "<think>only thoughts</think>  "}
	out, err := newTestClient(t, p).GenerateContent(context.Background(), "qwen3:latest", "q")
	require.NoError(t, err)
	assert.Equal(t, models.NoResponse, out)
}

func TestGenerateContent_RoutesPrefixedModels(t *testing.T) {
	local := &stubProvider{kind: provider.Ollama, answer: "local"}
	remote := &stubProvider{kind: provider.OpenAI, answer: "remote"}
	c := newTestClient(t, local, remote)

	out, err := c.GenerateContent(context.Background(), "openai/gpt-4o-mini", "q")
	require.NoError(t, err)
	assert.Equal(t, "remote", out)
	assert.Equal(t, "gpt-4o-mini", remote.gotModel)
	assert.Zero(t, local.calls)
}

func TestGenerateContent_Errors(t *testing.T) {
	down := errors.New("connection refused")
	c := newTestClient(t, &stubProvider{kind: provider.Ollama, err: down})

	_, err := c.GenerateContent(context.Background(), "qwen3:latest", "q")
	var genErr *models.GenerationServiceError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "qwen3:latest", genErr.Model)
	assert.ErrorIs(t, err, down)
}

func TestGenerateContent_Timeout(t *testing.T) {
	p := &stubProvider{kind: provider.Ollama, block: true}
	_, err := newTestClient(t, p).GenerateContent(context.Background(), "qwen3:latest", "q")

	var genErr *models.GenerationServiceError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.calls)
}

func TestValidateModel(t *testing.T) {
	c := newTestClient(t,
		&stubProvider{kind: provider.Ollama, models: []string{"qwen3:latest"}},
		&stubProvider{kind: provider.Claude, models: []string{"claude-3-5-sonnet-latest"}},
	)
	ctx := context.Background()

	assert.NoError(t, c.ValidateModel(ctx, "qwen3:latest"))
	assert.NoError(t, c.ValidateModel(ctx, "claude/claude-3-5-sonnet-latest"))

	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, c.ValidateModel(ctx, "llama3:8b"), &cfgErr)

	empty := newTestClient(t, &stubProvider{kind: provider.Ollama})
	assert.ErrorContains(t, empty.ValidateModel(ctx, "qwen3:latest"), "no models available")
}
