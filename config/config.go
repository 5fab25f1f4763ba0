package config

import (
	"fmt"
	"sort"

	"github.com/researchteam/utils"
)

// Config is the root of config.toml.
type Config struct {
	App        AppConfig              `toml:"app"`
	Log        LogConfig              `toml:"log"`
	Server     ServerConfig           `toml:"server"`
	Workflow   WorkflowConfig         `toml:"workflow"`
	Checkpoint CheckpointConfig       `toml:"checkpoint"`
	LLM        AgentLLMConfig         `toml:"llm" validate:"-"`
	Agents     map[string]AgentConfig `toml:"agents" validate:"dive"`
}

type AppConfig struct {
	Name string `toml:"name"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
	Output string `toml:"output"`
}

type ServerConfig struct {
	Addr         string         `toml:"addr" validate:"omitempty,hostname_port"`
	ReadTimeout  utils.Duration `toml:"read_timeout"`
	WriteTimeout utils.Duration `toml:"write_timeout"`
}

// WorkflowConfig bounds a single research run.
type WorkflowConfig struct {
	MaxSteps     int              `toml:"max_steps" validate:"omitempty,min=1,max=200"`
	HopTimeout   utils.Duration   `toml:"hop_timeout"`
	ThreadPrefix string           `toml:"thread_prefix"`
	Compaction   CompactionConfig `toml:"compaction"`
}

// CompactionConfig controls summarisation of long message histories before
// they are sent to a model. The stored history is never rewritten.
type CompactionConfig struct {
	Enabled      bool   `toml:"enabled"`
	MaxMessages  int    `toml:"max_messages" validate:"omitempty,min=2"`
	RetainRecent int    `toml:"retain_recent" validate:"omitempty,min=1"`
	SummaryAgent string `toml:"summary_agent"`
}

type CheckpointConfig struct {
	Driver string      `toml:"driver" validate:"omitempty,oneof=memory redis"`
	Redis  RedisConfig `toml:"redis"`
}

type RedisConfig struct {
	Addr      string         `toml:"addr" validate:"omitempty,hostname_port"`
	Password  string         `toml:"password"`
	DB        int            `toml:"db" validate:"min=0"`
	TTL       utils.Duration `toml:"ttl"`
	KeyPrefix string         `toml:"key_prefix"`
}

// AgentConfig is one [agents.<name>] table.
type AgentConfig struct {
	Enabled     bool           `toml:"enabled"`
	Description string         `toml:"description"`
	LLM         AgentLLMConfig `toml:"llm" validate:"-"`
}

// AgentLLMConfig selects the model provider for an agent. It is validated by
// llm.Factory after defaults from the top-level [llm] table are merged in and
// an empty model is replaced by the provider's default.
type AgentLLMConfig struct {
	Provider    string   `toml:"provider" validate:"required,oneof=openai anthropic gemini"`
	Model       string   `toml:"model" validate:"required"`
	APIKey      string   `toml:"api_key"`
	BaseURL     string   `toml:"base_url" validate:"omitempty,url"`
	MaxTokens   *int     `toml:"max_tokens" validate:"omitempty,min=1"`
	Temperature *float64 `toml:"temperature" validate:"omitempty,min=0,max=2"`
}

// GetAgentConfig returns the [agents.<name>] table.
func (c *Config) GetAgentConfig(name string) (AgentConfig, error) {
	acfg, ok := c.Agents[name]
	if !ok {
		return AgentConfig{}, fmt.Errorf("agent config %s not found", name)
	}
	return acfg, nil
}

// EnabledAgents returns the names of enabled agents in sorted order.
func (c *Config) EnabledAgents() []string {
	names := make([]string, 0, len(c.Agents))
	for name, acfg := range c.Agents {
		if acfg.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ResolveLLM merges an agent's llm table over the [llm] defaults. Fields the
// agent leaves empty are inherited.
func (c *Config) ResolveLLM(name string) (AgentLLMConfig, error) {
	acfg, err := c.GetAgentConfig(name)
	if err != nil {
		return AgentLLMConfig{}, err
	}
	out := c.LLM
	o := acfg.LLM
	if o.Provider != "" && o.Provider != out.Provider {
		// a different provider must not inherit another provider's model, key or endpoint
		out = AgentLLMConfig{Provider: o.Provider, MaxTokens: out.MaxTokens, Temperature: out.Temperature}
	}
	if o.Model != "" {
		out.Model = o.Model
	}
	if o.APIKey != "" {
		out.APIKey = o.APIKey
	}
	if o.BaseURL != "" {
		out.BaseURL = o.BaseURL
	}
	if o.MaxTokens != nil {
		out.MaxTokens = o.MaxTokens
	}
	if o.Temperature != nil {
		out.Temperature = o.Temperature
	}
	return out, nil
}
