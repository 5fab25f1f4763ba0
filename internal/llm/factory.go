package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kratos/blades"
	"github.com/go-playground/validator/v10"

	"github.com/researchteam/config"
)

const (
	defaultMaxTokens   = 2048
	defaultTemperature = 0.1
)

// Factory builds a blades.ModelProvider from a per-agent LLM config.
//
// It normalises the provider name, fills the provider's default model,
// validates the config, fills optional fields and dispatches to the
// provider-specific builder.
type Factory struct {
	validate *validator.Validate
	builders map[string]ModelBuilder
}

func NewFactory() *Factory {
	return &Factory{
		validate: validator.New(),
		builders: map[string]ModelBuilder{
			"openai":    newOpenAIBuilder(),
			"anthropic": newAnthropicBuilder(),
			"gemini":    newGeminiBuilder(),
		},
	}
}

func (f *Factory) Build(ctx context.Context, cfg config.AgentLLMConfig) (blades.ModelProvider, error) {
	cfg.Provider = normalizeProvider(cfg.Provider)

	builder, known := f.builders[cfg.Provider]
	if known {
		cfg.Model = builder.GetModel(&cfg)
	}

	if err := f.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate llm config: %w", err)
	}
	if !known {
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	applyDefaults(&cfg)
	return builder.Build(ctx, &cfg)
}

func normalizeProvider(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// applyDefaults fills optional fields so builders can dereference them.
func applyDefaults(cfg *config.AgentLLMConfig) {
	if cfg.MaxTokens == nil {
		v := defaultMaxTokens
		cfg.MaxTokens = &v
	}
	if cfg.Temperature == nil {
		v := defaultTemperature
		cfg.Temperature = &v
	}
}
