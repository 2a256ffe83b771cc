package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompatServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[
			{"id":"qwen3:latest","object":"model","created":1,"owned_by":"library"},
			{"id":"nomic-embed-text:latest","object":"model","created":1,"owned_by":"library"}]}`)
	})
	mux.HandleFunc("POST /v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body.Model)
		assert.Equal(t, "hello", body.Input)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25,1]}],
			"usage":{"prompt_tokens":1,"total_tokens":1}}`)
	})
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if body.Model == "empty" {
			_, _ = io.WriteString(w, `{"id":"c","object":"chat.completion","created":1,"model":"empty","choices":[]}`)
			return
		}
		if !assert.Len(t, body.Messages, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "user", body.Messages[0].Role)
		_, _ = io.WriteString(w, `{"id":"c","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"echo: `+body.Messages[0].Content+`"}}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Embed(t *testing.T) {
	srv := newCompatServer(t)
	p := NewOpenAI(srv.URL+"/v1", "sk-test")

	vec, err := p.Embed(context.Background(), "text-embedding-3-small", "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1}, vec)
}

func TestOpenAI_Generate(t *testing.T) {
	srv := newCompatServer(t)
	p := NewOpenAI(srv.URL+"/v1/", "sk-test")

	out, err := p.Generate(context.Background(), "gpt-4o-mini", "ping", GenerateOptions{MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", out)

	_, err = p.Generate(context.Background(), "empty", "ping", GenerateOptions{})
	assert.ErrorIs(t, err, errNoChoices)
}

func TestOpenAI_GenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOpenAI(url+"/v1", "sk-test").Generate(context.Background(), "m", "p", GenerateOptions{})
	assert.Error(t, err)
}

func TestOllama_ModelsUseCompatibleAPI(t *testing.T) {
	srv := newCompatServer(t)
	p := NewOllama(srv.URL, srv.URL+"/v1/")

	names, err := p.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen3:latest", "nomic-embed-text:latest"}, names)
	assert.Equal(t, Ollama, p.Kind())
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"ollama":    Ollama,
		"OpenAI":    OpenAI,
		"claude":    Claude,
		"anthropic": Claude,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("mistral")
	assert.Error(t, err)
}
