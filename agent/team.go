package agent

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-kratos/blades"

	"github.com/researchteam/internal/consts"
	"github.com/researchteam/internal/workflow"
)

// memberOrder fixes the order members are listed to the supervisor.
var memberOrder = []string{
	consts.AgentNameResearcher,
	consts.AgentNameAnalyst,
	consts.AgentNameWriter,
	consts.AgentNameArchivist,
	consts.AgentNameWebSearch,
	consts.AgentNameTranslator,
}

type TeamConfig struct {
	Supervisor Model
	// Members maps member agent names to their models.
	Members map[string]Model
	Options Options

	Middleware     []workflow.Middleware
	CompileOptions []workflow.CompileOption
}

// Team is a compiled research workflow.
type Team struct {
	*workflow.Runnable
	members []string
}

// Members returns the team's member names in routing order.
func (t *Team) Members() []string {
	return slices.Clone(t.members)
}

// NewResearchTeam wires the supervisor and members into a graph. The
// supervisor is the entry point and the only conditional node. Archivist and
// web search hand off to the translator, every other member returns to the
// supervisor.
func NewResearchTeam(cfg TeamConfig) (*Team, error) {
	if cfg.Supervisor == nil {
		return nil, errors.New("supervisor model is required")
	}
	if err := validateMembers(cfg.Members); err != nil {
		return nil, err
	}

	var members []string
	for _, name := range memberOrder {
		if _, ok := cfg.Members[name]; ok {
			members = append(members, name)
		}
	}

	supervisor, err := NewSupervisor(cfg.Supervisor, members, cfg.Options)
	if err != nil {
		return nil, err
	}

	routes := map[string]string{consts.Finish: workflow.END}
	g := workflow.NewGraph().
		AddNode(consts.AgentNameSupervisor, supervisor).
		SetEntryPoint(consts.AgentNameSupervisor).
		Use(cfg.Middleware...)

	for _, name := range members {
		node, err := NewWorker(name, cfg.Members[name], cfg.Options)
		if err != nil {
			return nil, err
		}
		g.AddNode(name, node)
		g.AddEdge(name, workerSpecs[name].edge)
		routes[name] = name
	}
	g.AddConditionalEdges(consts.AgentNameSupervisor, func(s workflow.State) string { return s.Next }, routes)

	r, err := g.Compile(cfg.CompileOptions...)
	if err != nil {
		return nil, fmt.Errorf("build research team: %w", err)
	}
	return &Team{Runnable: r, members: members}, nil
}

func validateMembers(models map[string]Model) error {
	for name, m := range models {
		if _, ok := workerSpecs[name]; !ok {
			return fmt.Errorf("unknown team member %s", name)
		}
		if m == nil {
			return fmt.Errorf("team member %s: model is required", name)
		}
	}
	for _, name := range consts.CoreMembers {
		if _, ok := models[name]; !ok {
			return fmt.Errorf("team member %s is required", name)
		}
	}
	for _, name := range consts.SourceMembers {
		if _, ok := models[name]; !ok {
			continue
		}
		if _, ok := models[consts.AgentNameTranslator]; !ok {
			return fmt.Errorf("team member %s requires %s", name, consts.AgentNameTranslator)
		}
	}
	return nil
}

// InitialState seeds a run for topic.
func InitialState(topic string) workflow.State {
	return workflow.State{
		Messages:      []*blades.Message{blades.UserMessage("Research the topic: " + topic)},
		Next:          consts.AgentNameResearcher,
		CurrentAgent:  consts.StartAgent,
		ResearchTopic: topic,
		Findings:      map[string]workflow.Finding{},
	}
}
