package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultMaxSteps    = 12
	DefaultHopTimeout  = 60 * time.Second
	DefaultProvider    = "gemini"
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 0.1
	DefaultServerAddr  = "localhost:8080"
	DefaultRedisTTL    = 24 * time.Hour
	DefaultRedisPrefix = "researchteam:checkpoint:"
)

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// Loader reads a single TOML file, expanding ${VAR} and ${VAR:default}
// placeholders from the environment before decoding.
type Loader struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
	validator  *validator.Validate
}

func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		validator:  validator.New(),
	}
}

// Load reads, expands, decodes, defaults and validates the config file.
// A .env file next to the config is loaded first when present; variables
// already set in the environment win.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	envPath := filepath.Join(filepath.Dir(l.configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load .env file %s: %w", envPath, err)
		}
	}

	content, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config file %s: %w", l.configPath, err)
	}

	var cfg Config
	if _, err := toml.Decode(expandEnv(string(content)), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", l.configPath, err)
	}

	applyDefaults(&cfg)

	if err := l.validator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	l.config = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Workflow.MaxSteps == 0 {
		cfg.Workflow.MaxSteps = DefaultMaxSteps
	}
	if cfg.Workflow.HopTimeout.Duration == 0 {
		cfg.Workflow.HopTimeout.Duration = DefaultHopTimeout
	}
	if cfg.Workflow.Compaction.Enabled {
		if cfg.Workflow.Compaction.MaxMessages == 0 {
			cfg.Workflow.Compaction.MaxMessages = 16
		}
		if cfg.Workflow.Compaction.RetainRecent == 0 {
			cfg.Workflow.Compaction.RetainRecent = 4
		}
	}
	if cfg.Checkpoint.Driver == "" {
		cfg.Checkpoint.Driver = "memory"
	}
	if cfg.Checkpoint.Redis.TTL.Duration == 0 {
		cfg.Checkpoint.Redis.TTL.Duration = DefaultRedisTTL
	}
	if cfg.Checkpoint.Redis.KeyPrefix == "" {
		cfg.Checkpoint.Redis.KeyPrefix = DefaultRedisPrefix
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = DefaultProvider
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = DefaultModel
		}
	}
	if cfg.LLM.Temperature == nil {
		t := DefaultTemperature
		cfg.LLM.Temperature = &t
	}
}

// expandEnv replaces ${VAR} and ${VAR:default}. An unset or empty variable
// takes the default, which may itself contain colons.
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if val := os.Getenv(groups[1]); val != "" {
			return val
		}
		if len(groups) >= 3 {
			return groups[2]
		}
		return ""
	})
}

// Get returns the last successfully loaded config, or nil.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

func (l *Loader) ConfigPath() string {
	return l.configPath
}
