package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-kratos/blades"

	"github.com/researchteam/config"
)

// ModelBuilder builds a provider-specific blades.ModelProvider.
type ModelBuilder interface {
	GetModel(cfg *config.AgentLLMConfig) string
	GetBaseURL(cfg *config.AgentLLMConfig) string
	Build(ctx context.Context, cfg *config.AgentLLMConfig) (blades.ModelProvider, error)
}

// endpoint is what a provider needs once defaults and keys are resolved.
type endpoint struct {
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// providerBuilder carries the per-provider defaults. Each provider only
// supplies the constructor that turns a resolved endpoint into a model.
type providerBuilder struct {
	model   string
	baseURL string
	// envKeys are consulted in order when the config has no api_key.
	envKeys  []string
	newModel func(ctx context.Context, ep endpoint) (blades.ModelProvider, error)
}

func (b *providerBuilder) GetModel(cfg *config.AgentLLMConfig) string {
	return resolveModel(cfg, b.model)
}

func (b *providerBuilder) GetBaseURL(cfg *config.AgentLLMConfig) string {
	return resolveBaseURL(cfg, b.baseURL)
}

func (b *providerBuilder) Build(ctx context.Context, cfg *config.AgentLLMConfig) (blades.ModelProvider, error) {
	apiKey, err := resolveAPIKey(cfg, strings.Join(b.envKeys, ","))
	if err != nil {
		return nil, err
	}
	ep := endpoint{
		Model:   b.GetModel(cfg),
		BaseURL: b.GetBaseURL(cfg),
		APIKey:  apiKey,
	}
	if cfg.MaxTokens != nil {
		ep.MaxTokens = *cfg.MaxTokens
	}
	if cfg.Temperature != nil {
		ep.Temperature = *cfg.Temperature
	}
	return b.newModel(ctx, ep)
}

func resolveModel(cfg *config.AgentLLMConfig, defaultModel string) string {
	if strings.TrimSpace(cfg.Model) == "" {
		return defaultModel
	}
	return cfg.Model
}

// resolveAPIKey prefers the configured key, then the first non-empty of the
// comma separated env var names.
func resolveAPIKey(cfg *config.AgentLLMConfig, envKeys string) (string, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		for _, k := range strings.Split(envKeys, ",") {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			if key = strings.TrimSpace(os.Getenv(k)); key != "" {
				break
			}
		}
	}
	if key == "" {
		return "", fmt.Errorf("%s api key not configured (api_key or %s)", cfg.Provider, envKeys)
	}
	return key, nil
}

func resolveBaseURL(cfg *config.AgentLLMConfig, defaultURL string) string {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return defaultURL
	}
	return cfg.BaseURL
}
