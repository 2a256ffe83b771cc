// Package provider adapts the supported model backends to a single interface.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind names a model backend.
type Kind string

const (
	Ollama Kind = "ollama"
	OpenAI Kind = "openai"
	Claude Kind = "claude"
)

var errNoChoices = errors.New("response contained no choices")

// ParseKind accepts the provider names used in configuration. "anthropic" is
// an alias for Claude.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return Ollama, nil
	case "openai":
		return OpenAI, nil
	case "claude", "anthropic":
		return Claude, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Provider is implemented by every backend. Embed returns
// models.ErrEmbeddingUnsupported for backends without an embedding endpoint.
type Provider interface {
	Kind() Kind
	Embed(ctx context.Context, model, text string) ([]float32, error)
	Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error)
	Models(ctx context.Context) ([]string, error)
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
