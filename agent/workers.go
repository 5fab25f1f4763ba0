package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/researchteam/internal/consts"
	"github.com/researchteam/internal/workflow"
)

// workerSpec describes one member agent. Each worker appends its reply, may
// record a finding and sets next as the state's default next hop. The graph
// always hands off along edge: the supervisor, or the translator for the
// source agents.
type workerSpec struct {
	name        string
	label       string
	instruction string
	prompt      string
	findingKey  string
	next        string
	edge        string
	extract     func(reply string) workflow.Finding
	// final marks the agent whose reply becomes the final report.
	final bool
}

var workerSpecs = map[string]workerSpec{
	consts.AgentNameResearcher: {
		name:        consts.AgentNameResearcher,
		label:       "Research",
		instruction: consts.ResearcherInstruction,
		prompt:      consts.ResearcherPrompt,
		findingKey:  consts.FindingResearch,
		next:        consts.AgentNameAnalyst,
		edge:        consts.AgentNameSupervisor,
		extract: func(reply string) workflow.Finding {
			return workflow.Finding{
				Summary:   reply,
				Excerpt:   Excerpt(reply),
				KeyPoints: KeyPoints(reply),
			}
		},
	},
	consts.AgentNameAnalyst: {
		name:        consts.AgentNameAnalyst,
		label:       "Analyst",
		instruction: consts.AnalystInstruction,
		prompt:      consts.AnalystPrompt,
		findingKey:  consts.FindingAnalysis,
		next:        consts.AgentNameWriter,
		edge:        consts.AgentNameSupervisor,
		extract: func(reply string) workflow.Finding {
			return workflow.Finding{
				Summary:         reply,
				KeyPoints:       KeyPoints(reply),
				Recommendations: Recommendations(reply),
			}
		},
	},
	consts.AgentNameWriter: {
		name:        consts.AgentNameWriter,
		label:       "Writer",
		instruction: consts.WriterInstruction,
		prompt:      consts.WriterPrompt,
		next:        consts.AgentNameSupervisor,
		edge:        consts.AgentNameSupervisor,
		final:       true,
	},
	consts.AgentNameArchivist: {
		name:        consts.AgentNameArchivist,
		label:       "Archivist",
		instruction: consts.ArchivistInstruction,
		prompt:      consts.ArchivistPrompt,
		findingKey:  consts.FindingArchive,
		next:        consts.AgentNameTranslator,
		edge:        consts.AgentNameTranslator,
		extract:     summaryFinding,
	},
	consts.AgentNameWebSearch: {
		name:        consts.AgentNameWebSearch,
		label:       "Web search",
		instruction: consts.WebSearchInstruction,
		prompt:      consts.WebSearchPrompt,
		findingKey:  consts.FindingWeb,
		next:        consts.AgentNameTranslator,
		edge:        consts.AgentNameTranslator,
		extract:     summaryFinding,
	},
	consts.AgentNameTranslator: {
		name:        consts.AgentNameTranslator,
		label:       "Translator",
		instruction: consts.TranslatorInstruction,
		prompt:      consts.TranslatorPrompt,
		findingKey:  consts.FindingTranslation,
		next:        consts.AgentNameSupervisor,
		edge:        consts.AgentNameSupervisor,
		extract:     summaryFinding,
	},
}

func summaryFinding(reply string) workflow.Finding {
	return workflow.Finding{Summary: reply, Excerpt: Excerpt(reply)}
}

// NewWorker returns the node function for the named member agent.
func NewWorker(name string, model Model, opts Options) (workflow.NodeFunc, error) {
	spec, ok := workerSpecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %s", name)
	}
	pa, err := newPromptAgent(spec.name, spec.instruction, spec.prompt, model, opts)
	if err != nil {
		return nil, err
	}
	return spec.node(pa), nil
}

func (w workerSpec) node(pa *promptAgent) workflow.NodeFunc {
	return func(ctx context.Context, s workflow.State) (workflow.State, error) {
		text, err := pa.generate(ctx, s)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return s, ctxErr
			}
			slog.Warn("agent.hop.failed", "agent", w.name, "error", err)

			out := s.WithMessages(reply(w.name, fmt.Sprintf("%s agent error: %v", w.label, err)))
			out.Next = w.next
			out.CurrentAgent = w.name
			if w.final {
				out.FinalReport = fmt.Sprintf("Error generating report: %v", err)
			}
			return out, nil
		}

		out := s.WithMessages(reply(w.name, text))
		out.Next = w.next
		out.CurrentAgent = w.name
		if w.findingKey != "" && w.extract != nil {
			out.Findings[w.findingKey] = w.extract(text)
		}
		if w.final {
			out.FinalReport = text
		}
		return out, nil
	}
}

func NewResearcher(model Model, opts Options) (workflow.NodeFunc, error) {
	return NewWorker(consts.AgentNameResearcher, model, opts)
}

func NewAnalyst(model Model, opts Options) (workflow.NodeFunc, error) {
	return NewWorker(consts.AgentNameAnalyst, model, opts)
}

func NewWriter(model Model, opts Options) (workflow.NodeFunc, error) {
	return NewWorker(consts.AgentNameWriter, model, opts)
}

func NewArchivist(model Model, opts Options) (workflow.NodeFunc, error) {
	return NewWorker(consts.AgentNameArchivist, model, opts)
}

func NewWebSearch(model Model, opts Options) (workflow.NodeFunc, error) {
	return NewWorker(consts.AgentNameWebSearch, model, opts)
}

func NewTranslator(model Model, opts Options) (workflow.NodeFunc, error) {
	return NewWorker(consts.AgentNameTranslator, model, opts)
}
