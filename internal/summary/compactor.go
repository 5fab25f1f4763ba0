package summary

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-kratos/blades"
)

const summaryPrefix = "Summary of earlier work:\n"

// Compactor replaces all but the most recent messages of a long history with
// a single system summary.
type Compactor struct {
	summarizer  Summarizer
	maxMessages int
	retain      int
}

type CompactorConfig struct {
	Summarizer Summarizer
	// MaxMessages is the history length above which compaction runs.
	MaxMessages int
	// RetainRecent messages are always sent verbatim.
	RetainRecent int
}

func NewCompactor(cfg CompactorConfig) (*Compactor, error) {
	if cfg.Summarizer == nil {
		return nil, fmt.Errorf("summarizer is required")
	}
	if cfg.MaxMessages <= 0 {
		return nil, fmt.Errorf("max messages must be positive, got %d", cfg.MaxMessages)
	}
	if cfg.RetainRecent < 0 || cfg.RetainRecent >= cfg.MaxMessages {
		return nil, fmt.Errorf("retain recent must be in [0, %d), got %d", cfg.MaxMessages, cfg.RetainRecent)
	}
	return &Compactor{
		summarizer:  cfg.Summarizer,
		maxMessages: cfg.MaxMessages,
		retain:      cfg.RetainRecent,
	}, nil
}

// Compact returns messages unchanged while they fit, otherwise a summary
// message followed by the retained tail. The input slice is not modified.
func (c *Compactor) Compact(ctx context.Context, messages []*blades.Message) ([]*blades.Message, error) {
	if len(messages) <= c.maxMessages {
		return messages, nil
	}
	cutoff := len(messages) - c.retain

	text, _, err := c.summarizer.Summarize(ctx, "", messages[:cutoff])
	if err != nil {
		return nil, fmt.Errorf("summarize history: %w", err)
	}
	slog.Debug("summary.compact", "messages", len(messages), "summarized", cutoff, "retained", c.retain)

	out := make([]*blades.Message, 0, c.retain+1)
	out = append(out, blades.SystemMessage(summaryPrefix+text))
	out = append(out, messages[cutoff:]...)
	return out, nil
}
