package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/researchteam/internal/consts"
	"github.com/researchteam/internal/workflow"
)

// decisionKeywords are checked in order; the first member with a matching
// keyword wins.
var decisionKeywords = []struct {
	member   string
	keywords []string
}{
	{consts.AgentNameResearcher, []string{"research"}},
	{consts.AgentNameAnalyst, []string{"analy"}},
	{consts.AgentNameWriter, []string{"writ"}},
	{consts.AgentNameArchivist, []string{"archiv", "arsiv", "paper"}},
	{consts.AgentNameWebSearch, []string{"web", "search"}},
	{consts.AgentNameTranslator, []string{"translat"}},
}

var fallbackNext = map[string]string{
	consts.StartAgent:          consts.AgentNameResearcher,
	consts.AgentNameResearcher: consts.AgentNameAnalyst,
	consts.AgentNameAnalyst:    consts.AgentNameWriter,
	consts.AgentNameWriter:     consts.Finish,
	consts.AgentNameArchivist:  consts.AgentNameTranslator,
	consts.AgentNameWebSearch:  consts.AgentNameTranslator,
	consts.AgentNameTranslator: consts.AgentNameAnalyst,
}

// ParseDecision maps a free-text supervisor reply to FINISH or a member name.
// Only members in the team are matched by keyword; when nothing matches the
// decision falls back on the agent that just ran.
func ParseDecision(reply, current string, members []string) string {
	text := strings.ToLower(strings.TrimSpace(reply))

	if strings.Contains(text, "finish") || strings.Contains(text, "complete") {
		return consts.Finish
	}
	for _, d := range decisionKeywords {
		if !slices.Contains(members, d.member) {
			continue
		}
		for _, kw := range d.keywords {
			if strings.Contains(text, kw) {
				return d.member
			}
		}
	}
	if next, ok := fallbackNext[current]; ok {
		return next
	}
	return consts.AgentNameResearcher
}

// NewSupervisor returns the routing node. Its reply is parsed into State.Next
// and replaced in the history by a one-line decision message.
func NewSupervisor(model Model, members []string, opts Options) (workflow.NodeFunc, error) {
	instruction, err := consts.BuildSupervisorInstruction(members)
	if err != nil {
		return nil, fmt.Errorf("build supervisor instruction: %w", err)
	}
	pa, err := newPromptAgent(consts.AgentNameSupervisor, instruction, consts.SupervisorPrompt, model, opts)
	if err != nil {
		return nil, err
	}
	members = slices.Clone(members)

	return func(ctx context.Context, s workflow.State) (workflow.State, error) {
		text, err := pa.generate(ctx, s)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return s, ctxErr
			}
			slog.Warn("agent.supervisor.failed", "error", err)

			out := s.WithMessages(reply(consts.AgentNameSupervisor, fmt.Sprintf("Supervisor error: %v", err)))
			out.Next = consts.Finish
			out.CurrentAgent = consts.AgentNameSupervisor
			return out, nil
		}

		next := ParseDecision(text, s.CurrentAgent, members)
		slog.Debug("agent.supervisor.decision", "reply", text, "current", s.CurrentAgent, "next", next)

		out := s.WithMessages(reply(consts.AgentNameSupervisor, "Supervisor decision: Next agent is "+next))
		out.Next = next
		out.CurrentAgent = consts.AgentNameSupervisor
		return out, nil
	}, nil
}
