package llm

import (
	"context"

	"github.com/go-kratos/blades"
	"github.com/go-kratos/blades/contrib/anthropic"
)

func newAnthropicBuilder() ModelBuilder {
	return &providerBuilder{
		model:   "claude-3-5-haiku-latest",
		baseURL: "https://api.anthropic.com",
		envKeys: []string{"ANTHROPIC_API_KEY"},
		newModel: func(_ context.Context, ep endpoint) (blades.ModelProvider, error) {
			opts := anthropic.Config{APIKey: ep.APIKey, BaseURL: ep.BaseURL}
			opts.MaxOutputTokens = int64(ep.MaxTokens)
			opts.Temperature = ep.Temperature
			return anthropic.NewModel(ep.Model, opts), nil
		},
	}
}
