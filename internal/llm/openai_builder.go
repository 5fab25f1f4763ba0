package llm

import (
	"context"

	"github.com/go-kratos/blades"
	"github.com/go-kratos/blades/contrib/openai"
)

func newOpenAIBuilder() ModelBuilder {
	return &providerBuilder{
		model:   "gpt-4o-mini",
		baseURL: "https://api.openai.com/v1",
		envKeys: []string{"OPENAI_API_KEY"},
		newModel: func(_ context.Context, ep endpoint) (blades.ModelProvider, error) {
			opts := openai.Config{APIKey: ep.APIKey, BaseURL: ep.BaseURL}
			opts.MaxOutputTokens = int64(ep.MaxTokens)
			opts.Temperature = ep.Temperature
			return openai.NewModel(ep.Model, opts), nil
		},
	}
}
