package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-kratos/blades"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchteam/agent"
	"github.com/researchteam/config"
	"github.com/researchteam/internal/workflow"
)

const baseConfig = `
[log]
level = "error"
output = "stderr"

[llm]
provider = "openai"
model = "gpt-4o-mini"
api_key = "sk-default"

[agents.supervisor]
enabled = true
[agents.researcher]
enabled = true
[agents.analyst]
enabled = true
[agents.writer]
enabled = true
`

// createTempConfig writes content to a config.toml in a temp dir.
func createTempConfig(t *testing.T, content string) string {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	err := os.WriteFile(configPath, []byte(content), 0644)
	require.NoError(t, err)
	return configPath
}

// scriptedModel answers by agent name; the supervisor walks the core route.
type scriptedModel struct {
	mu      sync.Mutex
	name    string
	replies []string
	err     error
}

func (m *scriptedModel) Generate(_ context.Context, _ *blades.ModelRequest) (*blades.ModelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	text := m.name + " output"
	if len(m.replies) > 0 {
		text = m.replies[0]
		if len(m.replies) > 1 {
			m.replies = m.replies[1:]
		}
	}
	return &blades.ModelResponse{Message: blades.AssistantMessage(text)}, nil
}

type fakeModels struct {
	mu      sync.Mutex
	configs map[string]config.AgentLLMConfig
	models  map[string]*scriptedModel
}

func newFakeModels(overrides map[string]*scriptedModel) *fakeModels {
	return &fakeModels{configs: map[string]config.AgentLLMConfig{}, models: overrides}
}

func (f *fakeModels) factory(_ context.Context, name string, cfg config.AgentLLMConfig) (agent.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[name] = cfg
	if m, ok := f.models[name]; ok {
		return m, nil
	}
	return &scriptedModel{name: name}, nil
}

func coreRoute() *scriptedModel {
	return &scriptedModel{name: "supervisor", replies: []string{"researcher", "analyst", "writer", "FINISH"}}
}

func newTestApp(t *testing.T, content string, models *fakeModels) *Application {
	t.Helper()
	app, err := NewApplication(createTempConfig(t, content), WithModelFactory(models.factory))
	require.NoError(t, err)
	require.NoError(t, app.Initialize(context.Background()))
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

// TestApplication_Initialize_AgentConfigs checks that each agent gets its own
// resolved LLM config.
func TestApplication_Initialize_AgentConfigs(t *testing.T) {
	content := baseConfig + `
[agents.analyst.llm]
provider = "anthropic"
model = "claude-3-5-haiku-latest"
api_key = "key-analyst"

[agents.writer.llm]
model = "gpt-4o"
`
	models := newFakeModels(nil)
	app := newTestApp(t, content, models)

	assert.Equal(t, []string{"researcher", "analyst", "writer"}, app.Members())
	require.Len(t, models.configs, 4)

	assert.Equal(t, "openai", models.configs["researcher"].Provider)
	assert.Equal(t, "sk-default", models.configs["researcher"].APIKey)

	assert.Equal(t, "anthropic", models.configs["analyst"].Provider)
	assert.Equal(t, "key-analyst", models.configs["analyst"].APIKey)

	assert.Equal(t, "gpt-4o", models.configs["writer"].Model)
	assert.Equal(t, "sk-default", models.configs["writer"].APIKey)
}

func TestApplication_Initialize_ProviderModels(t *testing.T) {
	app, err := NewApplication(createTempConfig(t, baseConfig))
	require.NoError(t, err)
	require.NoError(t, app.Initialize(context.Background()))
	defer app.Shutdown(context.Background())

	assert.Equal(t, []string{"analyst", "researcher", "supervisor", "writer"}, app.modelReg.Names())
}

// TestApplication_Initialize_ProviderOverrideWithoutModel switches one agent
// to another provider without naming a model; the provider default applies.
func TestApplication_Initialize_ProviderOverrideWithoutModel(t *testing.T) {
	content := baseConfig + `
[agents.writer.llm]
provider = "anthropic"
api_key = "key-writer"
`
	app, err := NewApplication(createTempConfig(t, content))
	require.NoError(t, err)
	require.NoError(t, app.Initialize(context.Background()))
	defer app.Shutdown(context.Background())

	resolved, err := app.Config().ResolveLLM("writer")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", resolved.Provider)
	assert.Empty(t, resolved.Model)
	assert.Contains(t, app.modelReg.Names(), "writer")
}

// TestApplication_Initialize_ValidationRules checks team composition rules.
func TestApplication_Initialize_ValidationRules(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		errContains string
	}{
		{
			name: "missing supervisor",
			content: `
[llm]
provider = "openai"
model = "gpt-4o"
[agents.researcher]
enabled = true
`,
			errContains: "supervisor agent supervisor is required but not found",
		},
		{
			name:        "supervisor disabled",
			content:     strings.Replace(baseConfig, "[agents.supervisor]\nenabled = true", "[agents.supervisor]\nenabled = false", 1),
			errContains: "supervisor agent supervisor must be enabled",
		},
		{
			name:        "writer disabled",
			content:     strings.Replace(baseConfig, "[agents.writer]\nenabled = true", "[agents.writer]\nenabled = false", 1),
			errContains: "agents writer must be enabled",
		},
		{
			name:        "web search without translator",
			content:     baseConfig + "[agents.web_search]\nenabled = true\n",
			errContains: "agent web_search requires translator to be enabled",
		},
		{
			name:        "unknown agent",
			content:     baseConfig + "[agents.poet]\nenabled = true\n",
			errContains: "unknown agent poet",
		},
		{
			name:        "summary agent disabled",
			content:     baseConfig + "[workflow.compaction]\nenabled = true\nsummary_agent = \"translator\"\n",
			errContains: "summary agent translator must be enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := NewApplication(createTempConfig(t, tt.content), WithModelFactory(newFakeModels(nil).factory))
			require.NoError(t, err)
			err = app.Initialize(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestApplication_Initialize_ModelError(t *testing.T) {
	failing := func(_ context.Context, name string, _ config.AgentLLMConfig) (agent.Model, error) {
		return nil, errors.New("no key")
	}
	app, err := NewApplication(createTempConfig(t, baseConfig), WithModelFactory(failing))
	require.NoError(t, err)

	err = app.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build model for")
	assert.Contains(t, err.Error(), "no key")
}

func TestApplication_Research(t *testing.T) {
	models := newFakeModels(map[string]*scriptedModel{"supervisor": coreRoute()})
	app := newTestApp(t, baseConfig, models)

	res, err := app.Research(context.Background(), "  ocean tides  ")
	require.NoError(t, err)
	assert.Equal(t, "writer output", res.State.FinalReport)
	assert.Equal(t, "ocean tides", res.State.ResearchTopic)
	assert.Equal(t, 7, res.Steps)
	assert.False(t, res.Truncated)

	cp, err := app.Checkpoint(context.Background(), res.ThreadID)
	require.NoError(t, err)
	assert.True(t, cp.Finished())
	assert.Equal(t, 7, cp.Step)

	families, err := app.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "researchteam_hops_total")
	assert.Contains(t, names, "researchteam_runs_total")
}

func TestApplication_Research_EmptyTopic(t *testing.T) {
	app := newTestApp(t, baseConfig, newFakeModels(nil))

	_, err := app.Research(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyTopic)
	assert.Equal(t, "research topic is empty", err.Error())
}

func TestApplication_Research_NoReport(t *testing.T) {
	models := newFakeModels(map[string]*scriptedModel{
		"supervisor": {name: "supervisor", replies: []string{"FINISH"}},
	})
	app := newTestApp(t, baseConfig, models)

	res, err := app.Research(context.Background(), "tides")
	require.ErrorIs(t, err, ErrNoReport)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Steps)
}

func TestApplication_Research_WriterFailure(t *testing.T) {
	models := newFakeModels(map[string]*scriptedModel{
		"supervisor": coreRoute(),
		"writer":     {name: "writer", err: errors.New("rate limited")},
	})
	app := newTestApp(t, baseConfig, models)

	res, err := app.Research(context.Background(), "tides")
	require.NoError(t, err)
	assert.Equal(t, "Error generating report: rate limited", res.State.FinalReport)
}

func TestApplication_ResumeTruncated(t *testing.T) {
	content := baseConfig + "\n[workflow]\nmax_steps = 3\nthread_prefix = \"rt-\"\n"
	models := newFakeModels(map[string]*scriptedModel{"supervisor": coreRoute()})
	app := newTestApp(t, content, models)

	res, err := app.Research(context.Background(), "tides")
	require.ErrorIs(t, err, ErrNoReport)
	require.True(t, res.Truncated)
	assert.True(t, strings.HasPrefix(res.ThreadID, "rt-"))

	res, err = app.Resume(context.Background(), res.ThreadID, workflow.WithMaxSteps(10))
	require.NoError(t, err)
	assert.Equal(t, "writer output", res.State.FinalReport)

	_, err = app.Resume(context.Background(), res.ThreadID)
	require.ErrorIs(t, err, workflow.ErrThreadFinished)
}

func TestApplication_Compaction(t *testing.T) {
	content := baseConfig + `
[workflow.compaction]
enabled = true
max_messages = 3
retain_recent = 1
summary_agent = "analyst"
`
	models := newFakeModels(map[string]*scriptedModel{"supervisor": coreRoute()})
	app := newTestApp(t, content, models)

	res, err := app.Research(context.Background(), "tides")
	require.NoError(t, err)
	assert.Len(t, res.State.Messages, 8, "stored history is not compacted")
}

// TestApplication_Research_NotInitialized runs before Initialize.
func TestApplication_Research_NotInitialized(t *testing.T) {
	app, _ := NewApplication("dummy.toml")
	_, err := app.Research(context.Background(), "tides")
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = app.Checkpoint(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotInitialized)
}

// TestApplication_Shutdown must handle nil members.
func TestApplication_Shutdown(t *testing.T) {
	app, _ := NewApplication("dummy.toml")
	err := app.Shutdown(context.Background())
	assert.NoError(t, err)
}
