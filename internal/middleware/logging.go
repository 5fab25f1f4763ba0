package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/researchteam/internal/workflow"
)

// Logging logs every hop with its duration and routing outcome.
func Logging(node string, next workflow.NodeFunc) workflow.NodeFunc {
	return func(ctx context.Context, s workflow.State) (workflow.State, error) {
		start := time.Now()
		slog.Debug("workflow.hop.start",
			"node", node,
			"current_agent", s.CurrentAgent,
			"messages", len(s.Messages),
		)

		out, err := next(ctx, s)
		if err != nil {
			slog.Error("workflow.hop.failed",
				"node", node,
				"duration", time.Since(start),
				"error", err,
			)
			return out, err
		}

		slog.Info("workflow.hop.complete",
			"node", node,
			"next", out.Next,
			"duration", time.Since(start),
			"messages", len(out.Messages),
			"findings", len(out.Findings),
		)
		return out, nil
	}
}
