package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-kratos/blades"
)

type Summarizer interface {
	// Summarize produces a summary that fully replaces previousSummary.
	// previousSummary may be empty; messages must not repeat it.
	Summarize(ctx context.Context, previousSummary string, messages []*blades.Message) (newSummary string, usage blades.TokenUsage, err error)
}

// Model is satisfied by any blades.ModelProvider.
type Model interface {
	Generate(ctx context.Context, req *blades.ModelRequest) (*blades.ModelResponse, error)
}

type Config struct {
	Model           Model
	MaxOutputTokens int
	MaxSummaryChars int
}

func (c *Config) validate() error {
	if c.Model == nil {
		return fmt.Errorf("summary model is required")
	}
	return nil
}

type modelSummarizer struct {
	model           Model
	maxOutputTokens int
	maxSummaryChars int
}

func NewSummarizer(cfg Config) (Summarizer, error) {
	if err := (&cfg).validate(); err != nil {
		return nil, err
	}
	return &modelSummarizer{
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		maxSummaryChars: cfg.MaxSummaryChars,
	}, nil
}

func (s *modelSummarizer) Summarize(ctx context.Context, previousSummary string, messages []*blades.Message) (string, blades.TokenUsage, error) {
	instruction := blades.SystemMessage(buildSummaryInstruction(s.maxOutputTokens, s.maxSummaryChars))
	user := blades.UserMessage(buildSummaryInput(previousSummary, messages))

	slog.Info("summary.start", "previous_len", len(previousSummary), "delta_count", len(messages))

	resp, err := s.model.Generate(ctx, &blades.ModelRequest{
		Instruction: instruction,
		Messages:    []*blades.Message{user},
	})
	if err != nil {
		slog.Error("summary.failed", "error", err)
		return "", blades.TokenUsage{}, err
	}
	if resp == nil || resp.Message == nil {
		err := fmt.Errorf("summary model returned empty response")
		slog.Error("summary.failed", "error", err)
		return "", blades.TokenUsage{}, err
	}
	slog.Info("summary.complete",
		"input_tokens", resp.Message.TokenUsage.InputTokens,
		"output_tokens", resp.Message.TokenUsage.OutputTokens,
	)
	return strings.TrimSpace(resp.Message.Text()), resp.Message.TokenUsage, nil
}

func buildSummaryInstruction(maxOutputTokens, maxSummaryChars int) string {
	var b strings.Builder
	b.WriteString("You compress the working history of a research team into a summary that replaces it.\n")
	b.WriteString("\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Output only the summary text, with no preamble.\n")
	b.WriteString("- The summary is given to the next agent as system context.\n")
	b.WriteString("- You receive previous_summary (may be empty) and delta_transcript. Merge both; the transcript may correct the previous summary.\n")
	b.WriteString("- Keep facts, figures, sources and open questions. Drop routing chatter.\n")
	b.WriteString("- Structure:\n")
	b.WriteString("  1) Research findings\n")
	b.WriteString("  2) Analysis and recommendations\n")
	b.WriteString("  3) Report progress\n")
	b.WriteString("  4) Open questions\n")
	if maxSummaryChars > 0 {
		b.WriteString(fmt.Sprintf("- At most %d characters.\n", maxSummaryChars))
	}
	if maxOutputTokens > 0 {
		b.WriteString(fmt.Sprintf("- Aim for no more than %d output tokens.\n", maxOutputTokens))
	}
	return b.String()
}

func buildSummaryInput(previousSummary string, messages []*blades.Message) string {
	var b strings.Builder
	b.WriteString("previous_summary:\n")
	if strings.TrimSpace(previousSummary) == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(previousSummary)
		if !strings.HasSuffix(previousSummary, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString("delta_transcript:\n")
	b.WriteString(renderTranscript(messages))
	return b.String()
}

func renderTranscript(messages []*blades.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m == nil {
			continue
		}
		txt := strings.TrimSpace(m.Text())
		switch m.Role {
		case blades.RoleUser:
			b.WriteString("User: ")
		case blades.RoleAssistant:
			if m.Author != "" {
				b.WriteString(m.Author)
				b.WriteString(": ")
			} else {
				b.WriteString("Assistant: ")
			}
		case blades.RoleSystem:
			if txt == "" {
				continue
			}
			b.WriteString("System: ")
		default:
			continue
		}
		b.WriteString(txt)
		b.WriteString("\n")
	}
	return b.String()
}
