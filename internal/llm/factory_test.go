package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchteam/config"
)

func TestNormalizeProvider(t *testing.T) {
	assert.Equal(t, "openai", normalizeProvider("  OpenAI "))
	assert.Equal(t, "gemini", normalizeProvider("GEMINI"))
	assert.Equal(t, "", normalizeProvider("   "))
}

func TestApplyDefaults(t *testing.T) {
	t.Run("fills empty fields", func(t *testing.T) {
		cfg := config.AgentLLMConfig{Provider: "openai", Model: "gpt-4o"}
		applyDefaults(&cfg)

		require.NotNil(t, cfg.MaxTokens)
		require.NotNil(t, cfg.Temperature)
		assert.Equal(t, defaultMaxTokens, *cfg.MaxTokens)
		assert.InDelta(t, defaultTemperature, *cfg.Temperature, 1e-9)
	})

	t.Run("keeps configured values", func(t *testing.T) {
		maxTokens := 512
		temp := 0.7
		cfg := config.AgentLLMConfig{MaxTokens: &maxTokens, Temperature: &temp}
		applyDefaults(&cfg)

		assert.Equal(t, 512, *cfg.MaxTokens)
		assert.InDelta(t, 0.7, *cfg.Temperature, 1e-9)
	})
}

func TestFactoryBuild(t *testing.T) {
	ctx := context.Background()
	f := NewFactory()

	t.Run("openai", func(t *testing.T) {
		m, err := f.Build(ctx, config.AgentLLMConfig{Provider: "OpenAI", Model: "gpt-4o", APIKey: "sk-test"})
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("anthropic", func(t *testing.T) {
		m, err := f.Build(ctx, config.AgentLLMConfig{Provider: "anthropic", Model: "claude-3-5-haiku-latest", APIKey: "sk-test"})
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("missing provider", func(t *testing.T) {
		_, err := f.Build(ctx, config.AgentLLMConfig{Model: "gpt-4o"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validate llm config")
	})

	t.Run("unsupported provider", func(t *testing.T) {
		_, err := f.Build(ctx, config.AgentLLMConfig{Provider: "ollama", Model: "llama3"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validate llm config")
	})

	t.Run("provider default model", func(t *testing.T) {
		for _, provider := range []string{"openai", "anthropic", "gemini"} {
			m, err := f.Build(ctx, config.AgentLLMConfig{Provider: provider, APIKey: "sk-test"})
			require.NoError(t, err, provider)
			assert.NotNil(t, m, provider)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := f.Build(ctx, config.AgentLLMConfig{Provider: "openai", Model: "gpt-4o"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api key not configured")
	})
}

func TestModelRegistry(t *testing.T) {
	r := NewModelRegistry()

	_, err := r.Get("researcher")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "researcher")

	m, err := NewFactory().Build(context.Background(), config.AgentLLMConfig{Provider: "openai", Model: "gpt-4o", APIKey: "sk-test"})
	require.NoError(t, err)

	r.Register("writer", m)
	r.Register("analyst", m)

	got, err := r.Get("writer")
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.Equal(t, []string{"analyst", "writer"}, r.Names())
	assert.NoError(t, r.Close())
}
