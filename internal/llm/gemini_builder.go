package llm

import (
	"context"

	"github.com/go-kratos/blades"
	"github.com/go-kratos/blades/contrib/gemini"
	"google.golang.org/genai"
)

// newGeminiBuilder has no default base URL; genai picks its own endpoint
// unless one is configured.
func newGeminiBuilder() ModelBuilder {
	return &providerBuilder{
		model:   "gemini-2.5-flash",
		envKeys: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		newModel: func(ctx context.Context, ep endpoint) (blades.ModelProvider, error) {
			var opts gemini.Config
			opts.ClientConfig = genai.ClientConfig{
				APIKey:  ep.APIKey,
				Backend: genai.BackendGeminiAPI,
			}
			if ep.BaseURL != "" {
				opts.ClientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: ep.BaseURL}
			}
			opts.MaxOutputTokens = int32(ep.MaxTokens)
			opts.Temperature = float32(ep.Temperature)
			return gemini.NewModel(ctx, ep.Model, opts)
		},
	}
}
