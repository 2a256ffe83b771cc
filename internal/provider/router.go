package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// Router dispatches model names to providers. A name may carry a provider
// prefix ("openai/gpt-4o-mini", "claude/claude-3-5-haiku-latest"); names
// without one belong to the default generation provider.
type Router struct {
	providers map[Kind]Provider
	order     []Kind
	def       Kind
}

// NewRouter builds the providers enabled by cfg. Ollama is always available;
// OpenAI and Claude need an API key.
func NewRouter(cfg *config.Config) (*Router, error) {
	def, err := ParseKind(cfg.Generation.Provider)
	if err != nil {
		return nil, &models.ConfigurationError{Field: "generation.provider", Err: err}
	}

	ps := []Provider{NewOllama(cfg.Endpoint, cfg.OpenAICompatibleURL())}
	if cfg.OpenAI.APIKey != "" {
		ps = append(ps, NewOpenAI(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey))
	}
	if cfg.Anthropic.APIKey != "" {
		ps = append(ps, NewClaude(cfg.Anthropic.BaseURL, cfg.Anthropic.APIKey, cfg.Anthropic.Models))
	}
	return NewRouterFrom(def, ps...)
}

// NewRouterFrom builds a router over explicit providers. def must be one of them.
func NewRouterFrom(def Kind, ps ...Provider) (*Router, error) {
	r := &Router{providers: make(map[Kind]Provider, len(ps)), def: def}
	for _, p := range ps {
		if _, dup := r.providers[p.Kind()]; !dup {
			r.order = append(r.order, p.Kind())
		}
		r.providers[p.Kind()] = p
	}
	if _, ok := r.providers[def]; !ok {
		return nil, models.NewConfigError("generation.provider", "%s is not configured (missing API key?)", def)
	}
	return r, nil
}

// Get returns the provider of the given kind.
func (r *Router) Get(kind Kind) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, models.NewConfigError(string(kind), "provider is not configured")
	}
	return p, nil
}

// Resolve splits an optional provider prefix off model.
func (r *Router) Resolve(model string) (Provider, string, error) {
	if prefix, name, ok := strings.Cut(model, "/"); ok {
		if kind, err := ParseKind(prefix); err == nil {
			p, err := r.Get(kind)
			if err != nil {
				return nil, "", err
			}
			return p, name, nil
		}
	}
	return r.providers[r.def], model, nil
}

// Models lists the models of every configured provider. Entries of providers
// other than the default carry their prefix so they round-trip through
// Resolve. A provider that cannot be reached is skipped unless all fail.
func (r *Router) Models(ctx context.Context) ([]string, error) {
	var (
		names []string
		errs  []error
	)
	for _, kind := range r.order {
		list, err := r.providers[kind].Models(ctx)
		if err != nil {
			log.Warn().Err(err).Str("provider", string(kind)).Msg("Could not list models")
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		for _, name := range list {
			if kind != r.def {
				name = string(kind) + "/" + name
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return names, nil
}
