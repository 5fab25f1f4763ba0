package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/go-kratos/blades"

	"github.com/researchteam/internal/workflow"
)

// Model is the part of blades.ModelProvider the agents call.
type Model interface {
	Generate(ctx context.Context, req *blades.ModelRequest) (*blades.ModelResponse, error)
}

// FromProvider adapts a blades model provider to Model.
func FromProvider(p blades.ModelProvider) Model {
	return providerModel{p: p}
}

type providerModel struct {
	p blades.ModelProvider
}

func (m providerModel) Generate(ctx context.Context, req *blades.ModelRequest) (*blades.ModelResponse, error) {
	return m.p.Generate(ctx, req)
}

// Compactor shortens the history sent to a model. The run's state keeps the
// full history.
type Compactor interface {
	Compact(ctx context.Context, messages []*blades.Message) ([]*blades.Message, error)
}

// Options are shared by every agent of a team.
type Options struct {
	Compactor  Compactor
	HopTimeout time.Duration
}

type promptData struct {
	Topic        string
	CurrentAgent string
}

// promptAgent sends instruction + history + a templated human prompt to a
// model and returns the trimmed reply.
type promptAgent struct {
	name        string
	instruction string
	prompt      *template.Template
	model       Model
	opts        Options
}

func newPromptAgent(name, instruction, prompt string, model Model, opts Options) (*promptAgent, error) {
	if model == nil {
		return nil, fmt.Errorf("agent %s: model is required", name)
	}
	tmpl, err := template.New(name + "_prompt").Option("missingkey=error").Parse(prompt)
	if err != nil {
		return nil, fmt.Errorf("agent %s: parse prompt: %w", name, err)
	}
	return &promptAgent{
		name:        name,
		instruction: instruction,
		prompt:      tmpl,
		model:       model,
		opts:        opts,
	}, nil
}

func (a *promptAgent) render(s workflow.State) (string, error) {
	var buf bytes.Buffer
	err := a.prompt.Execute(&buf, promptData{
		Topic:        s.ResearchTopic,
		CurrentAgent: s.CurrentAgent,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

func (a *promptAgent) history(ctx context.Context, s workflow.State) []*blades.Message {
	if a.opts.Compactor == nil {
		return s.Messages
	}
	compacted, err := a.opts.Compactor.Compact(ctx, s.Messages)
	if err != nil {
		slog.Warn("agent.history.compact.failed", "agent", a.name, "error", err)
		return s.Messages
	}
	return compacted
}

func (a *promptAgent) generate(ctx context.Context, s workflow.State) (string, error) {
	human, err := a.render(s)
	if err != nil {
		return "", err
	}

	messages := slices.Clone(a.history(ctx, s))
	messages = append(messages, blades.UserMessage(human))

	callCtx := ctx
	if a.opts.HopTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.opts.HopTimeout)
		defer cancel()
	}

	resp, err := a.model.Generate(callCtx, &blades.ModelRequest{
		Instruction: blades.SystemMessage(a.instruction),
		Messages:    messages,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Message == nil {
		return "", errors.New("model returned empty response")
	}
	return strings.TrimSpace(resp.Message.Text()), nil
}

// reply builds the assistant message appended to the history.
func reply(author, text string) *blades.Message {
	msg := blades.AssistantMessage(text)
	msg.Author = author
	msg.Status = blades.StatusCompleted
	return msg
}
