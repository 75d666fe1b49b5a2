package llm

import (
	"context"

	"chefitup/internal/config"
)

// NewFromConfig builds the generator for the configured provider, wrapped in
// the configured rate limit. It returns ErrNotConfigured when the provider
// has no credential. The result implements Closer when it holds resources.
func NewFromConfig(ctx context.Context, cfg *config.Config, temperature float64) (TextGenerator, error) {
	if !cfg.LLMConfigured() {
		return nil, ErrNotConfigured
	}

	var gen TextGenerator
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		g, err := NewGeminiClient(ctx, cfg, float32(temperature))
		if err != nil {
			return nil, err
		}
		gen = g
	default:
		gen = NewOpenAIClient(cfg, temperature)
	}
	return NewRateLimited(gen, cfg.LLMRequestsPerMinute), nil
}
