package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/researchteam/agent"
	"github.com/researchteam/config"
	"github.com/researchteam/internal/consts"
	"github.com/researchteam/internal/llm"
	"github.com/researchteam/internal/logger"
	"github.com/researchteam/internal/middleware"
	"github.com/researchteam/internal/summary"
	"github.com/researchteam/internal/workflow"
)

var (
	ErrEmptyTopic     = errors.New("research topic is empty")
	ErrNoReport       = errors.New("no report generated")
	ErrNotInitialized = errors.New("application not initialized")
)

// ModelFactory builds the model for one agent from its resolved LLM config.
type ModelFactory func(ctx context.Context, name string, cfg config.AgentLLMConfig) (agent.Model, error)

type Option func(*Application)

// WithModelFactory replaces the provider-backed model factory.
func WithModelFactory(f ModelFactory) Option {
	return func(a *Application) { a.modelFactory = f }
}

type Application struct {
	loader       *config.Loader
	cfg          *config.Config
	modelReg     *llm.ModelRegistry
	modelFactory ModelFactory
	models       map[string]agent.Model
	checkpointer workflow.Checkpointer
	registry     *prometheus.Registry
	metrics      *middleware.Metrics
	team         *agent.Team
	logCloser    io.Closer
}

func NewApplication(configPath string, opts ...Option) (*Application, error) {
	a := &Application{
		loader:   config.NewLoader(configPath),
		modelReg: llm.NewModelRegistry(),
		registry: prometheus.NewRegistry(),
	}
	a.modelFactory = a.providerModel
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Application) Initialize(ctx context.Context) error {
	cfg, err := a.loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := a.validateRules(cfg); err != nil {
		return fmt.Errorf("validate app rules: %w", err)
	}
	a.cfg = cfg

	a.logCloser = logger.Initialize(cfg.Log)

	if err := a.initModels(ctx); err != nil {
		return err
	}

	if err := a.initCheckpointer(ctx); err != nil {
		return err
	}

	if err := a.initMetrics(); err != nil {
		return err
	}

	if err := a.initTeam(); err != nil {
		return err
	}

	return nil
}

func (a *Application) validateRules(cfg *config.Config) error {
	supervisor, ok := cfg.Agents[consts.AgentNameSupervisor]
	if !ok {
		return fmt.Errorf("supervisor agent %s is required but not found", consts.AgentNameSupervisor)
	}
	if !supervisor.Enabled {
		return fmt.Errorf("supervisor agent %s must be enabled", consts.AgentNameSupervisor)
	}

	var missing []string
	for _, name := range consts.CoreMembers {
		if acfg, ok := cfg.Agents[name]; !ok || !acfg.Enabled {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("agents %s must be enabled", strings.Join(missing, ", "))
	}

	translator := cfg.Agents[consts.AgentNameTranslator].Enabled
	for _, name := range consts.SourceMembers {
		if cfg.Agents[name].Enabled && !translator {
			return fmt.Errorf("agent %s requires %s to be enabled", name, consts.AgentNameTranslator)
		}
	}

	for _, name := range cfg.EnabledAgents() {
		if !isKnownAgent(name) {
			return fmt.Errorf("unknown agent %s", name)
		}
	}

	if c := cfg.Workflow.Compaction; c.Enabled && c.SummaryAgent != "" {
		if !cfg.Agents[c.SummaryAgent].Enabled {
			return fmt.Errorf("summary agent %s must be enabled", c.SummaryAgent)
		}
	}
	return nil
}

func isKnownAgent(name string) bool {
	switch name {
	case consts.AgentNameSupervisor,
		consts.AgentNameResearcher,
		consts.AgentNameAnalyst,
		consts.AgentNameWriter,
		consts.AgentNameArchivist,
		consts.AgentNameWebSearch,
		consts.AgentNameTranslator:
		return true
	}
	return false
}

func (a *Application) providerModel(ctx context.Context, name string, cfg config.AgentLLMConfig) (agent.Model, error) {
	p, err := llm.NewFactory().Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.modelReg.Register(name, p)
	return agent.FromProvider(p), nil
}

func (a *Application) initModels(ctx context.Context) error {
	slog.Info("app.init.models.start")
	enabled := a.cfg.EnabledAgents()
	a.models = make(map[string]agent.Model, len(enabled))

	for _, name := range enabled {
		llmCfg, err := a.cfg.ResolveLLM(name)
		if err != nil {
			return err
		}
		m, err := a.modelFactory(ctx, name, llmCfg)
		if err != nil {
			return fmt.Errorf("build model for %s: %w", name, err)
		}
		a.models[name] = m
		slog.Info("app.init.models.register",
			"agent", name,
			"provider", llmCfg.Provider,
			"model", llmCfg.Model,
		)
	}
	slog.Info("app.init.models.complete", "count", len(a.models))
	return nil
}

func (a *Application) initCheckpointer(ctx context.Context) error {
	cc := a.cfg.Checkpoint
	switch cc.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cc.Redis.Addr,
			Password: cc.Redis.Password,
			DB:       cc.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("connect redis %s: %w", cc.Redis.Addr, err)
		}
		a.checkpointer = workflow.NewRedisCheckpointer(client,
			workflow.WithKeyPrefix(cc.Redis.KeyPrefix),
			workflow.WithTTL(cc.Redis.TTL.Duration),
		)
	default:
		a.checkpointer = workflow.NewMemoryCheckpointer()
	}
	slog.Info("app.init.checkpointer.complete", "driver", cc.Driver)
	return nil
}

func (a *Application) initMetrics() error {
	if err := a.registry.Register(collectors.NewGoCollector()); err != nil {
		return fmt.Errorf("register go collector: %w", err)
	}
	m, err := middleware.NewMetrics(a.registry)
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

func (a *Application) compactor() (agent.Compactor, error) {
	c := a.cfg.Workflow.Compaction
	if !c.Enabled {
		return nil, nil
	}
	name := c.SummaryAgent
	if name == "" {
		name = consts.AgentNameSupervisor
	}
	s, err := summary.NewSummarizer(summary.Config{Model: a.models[name]})
	if err != nil {
		return nil, fmt.Errorf("create summarizer: %w", err)
	}
	return summary.NewCompactor(summary.CompactorConfig{
		Summarizer:   s,
		MaxMessages:  c.MaxMessages,
		RetainRecent: c.RetainRecent,
	})
}

func (a *Application) initTeam() error {
	slog.Info("app.init.team.start")
	compactor, err := a.compactor()
	if err != nil {
		return err
	}

	members := make(map[string]agent.Model, len(a.models))
	for name, m := range a.models {
		if name != consts.AgentNameSupervisor {
			members[name] = m
		}
	}

	opts := agent.Options{
		Compactor:  compactor,
		HopTimeout: a.cfg.Workflow.HopTimeout.Duration,
	}

	team, err := agent.NewResearchTeam(agent.TeamConfig{
		Supervisor: a.models[consts.AgentNameSupervisor],
		Members:    members,
		Options:    opts,
		Middleware: []workflow.Middleware{middleware.Logging, a.metrics.Middleware()},
		CompileOptions: []workflow.CompileOption{
			workflow.WithCheckpointer(a.checkpointer),
			workflow.WithDefaultMaxSteps(a.cfg.Workflow.MaxSteps),
			workflow.WithThreadPrefix(a.cfg.Workflow.ThreadPrefix),
		},
	})
	if err != nil {
		return fmt.Errorf("create research team: %w", err)
	}
	a.team = team
	slog.Info("app.init.team.complete",
		"members", team.Members(),
		"max_steps", a.cfg.Workflow.MaxSteps,
		"compaction", compactor != nil,
	)
	return nil
}

// Research runs the team on topic. A run that ends without a final report
// returns its result together with ErrNoReport.
func (a *Application) Research(ctx context.Context, topic string, opts ...workflow.RunOption) (*workflow.Result, error) {
	if a.team == nil {
		return nil, ErrNotInitialized
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	slog.Info("app.research.start", "topic", topic)
	res, err := a.team.Invoke(ctx, agent.InitialState(topic), opts...)
	return a.finish(res, err)
}

// Resume continues a checkpointed run.
func (a *Application) Resume(ctx context.Context, threadID string, opts ...workflow.RunOption) (*workflow.Result, error) {
	if a.team == nil {
		return nil, ErrNotInitialized
	}
	res, err := a.team.Resume(ctx, threadID, opts...)
	return a.finish(res, err)
}

func (a *Application) finish(res *workflow.Result, err error) (*workflow.Result, error) {
	a.metrics.ObserveRun(res, err)
	if err != nil {
		slog.Error("app.research.failed", "error", err)
		return nil, err
	}
	slog.Info("app.research.complete",
		"thread_id", res.ThreadID,
		"steps", res.Steps,
		"truncated", res.Truncated,
	)
	if strings.TrimSpace(res.State.FinalReport) == "" {
		return res, ErrNoReport
	}
	return res, nil
}

// Checkpoint returns the latest checkpoint of a thread.
func (a *Application) Checkpoint(ctx context.Context, threadID string) (workflow.Checkpoint, error) {
	if a.checkpointer == nil {
		return workflow.Checkpoint{}, ErrNotInitialized
	}
	return a.checkpointer.Load(ctx, threadID)
}

func (a *Application) Config() *config.Config {
	return a.cfg
}

// Registry is the prometheus registry the application's metrics are
// registered on.
func (a *Application) Registry() *prometheus.Registry {
	return a.registry
}

func (a *Application) Members() []string {
	if a.team == nil {
		return nil
	}
	return a.team.Members()
}

func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error

	if a.modelReg != nil {
		if err := a.modelReg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close models: %w", err))
		}
	}

	if closer, ok := a.checkpointer.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close checkpointer: %w", err))
		}
	}

	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log output: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (a *Application) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.Shutdown(ctx)
}
