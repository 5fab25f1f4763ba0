package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestConfig_GetAgentConfig(t *testing.T) {
	cfg := &Config{
		Agents: map[string]AgentConfig{
			"researcher": {Enabled: true, LLM: AgentLLMConfig{Provider: "openai", Model: "gpt-4"}},
		},
	}

	_, err := cfg.GetAgentConfig("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	got, err := cfg.GetAgentConfig("researcher")
	require.NoError(t, err)
	assert.Equal(t, "openai", got.LLM.Provider)
	assert.Equal(t, "gpt-4", got.LLM.Model)
}

func TestConfig_EnabledAgents(t *testing.T) {
	cfg := &Config{
		Agents: map[string]AgentConfig{
			"writer":     {Enabled: true},
			"analyst":    {Enabled: true},
			"translator": {Enabled: false},
			"supervisor": {Enabled: true},
		},
	}
	assert.Equal(t, []string{"analyst", "supervisor", "writer"}, cfg.EnabledAgents())
}

func TestConfig_ResolveLLM(t *testing.T) {
	cfg := &Config{
		LLM: AgentLLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			APIKey:      "gemini-key",
			Temperature: ptr(0.1),
		},
		Agents: map[string]AgentConfig{
			"researcher": {Enabled: true},
			"analyst":    {Enabled: true, LLM: AgentLLMConfig{Model: "gemini-2.5-pro", MaxTokens: ptr(4096)}},
			"writer":     {Enabled: true, LLM: AgentLLMConfig{Provider: "openai", Model: "gpt-4o"}},
		},
	}

	t.Run("inherits defaults", func(t *testing.T) {
		got, err := cfg.ResolveLLM("researcher")
		require.NoError(t, err)
		assert.Equal(t, "gemini", got.Provider)
		assert.Equal(t, "gemini-2.5-flash", got.Model)
		assert.Equal(t, "gemini-key", got.APIKey)
		require.NotNil(t, got.Temperature)
		assert.Equal(t, 0.1, *got.Temperature)
	})

	t.Run("overrides individual fields", func(t *testing.T) {
		got, err := cfg.ResolveLLM("analyst")
		require.NoError(t, err)
		assert.Equal(t, "gemini", got.Provider)
		assert.Equal(t, "gemini-2.5-pro", got.Model)
		assert.Equal(t, "gemini-key", got.APIKey)
		require.NotNil(t, got.MaxTokens)
		assert.Equal(t, 4096, *got.MaxTokens)
	})

	t.Run("provider switch drops foreign credentials", func(t *testing.T) {
		got, err := cfg.ResolveLLM("writer")
		require.NoError(t, err)
		assert.Equal(t, "openai", got.Provider)
		assert.Equal(t, "gpt-4o", got.Model)
		assert.Empty(t, got.APIKey)
		require.NotNil(t, got.Temperature)
		assert.Equal(t, 0.1, *got.Temperature)
	})

	t.Run("unknown agent", func(t *testing.T) {
		_, err := cfg.ResolveLLM("nobody")
		require.Error(t, err)
	})
}
