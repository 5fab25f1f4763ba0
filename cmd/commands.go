package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/researchteam/internal/app"
	"github.com/researchteam/internal/persistence"
	"github.com/researchteam/internal/repl"
	"github.com/researchteam/internal/server"
	"github.com/researchteam/internal/workflow"
)

const shutdownTimeout = 5 * time.Second

// withApp initialises the application for one command and shuts it down
// afterwards.
func withApp(ctx context.Context, configPath string, fn func(*app.Application) error) error {
	application, err := app.NewApplication(configPath)
	if err != nil {
		return err
	}
	if err := application.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		if err := application.ShutdownWithTimeout(shutdownTimeout); err != nil {
			slog.Error("app.shutdown.failed", "error", err)
		}
	}()
	return fn(application)
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		topic    string
		threadID string
		out      string
		maxSteps int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Research one topic and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(a *app.Application) error {
				var opts []workflow.RunOption
				if threadID != "" {
					opts = append(opts, workflow.WithThreadID(threadID))
				}
				if maxSteps > 0 {
					opts = append(opts, workflow.WithMaxSteps(maxSteps))
				}
				res, err := a.Research(cmd.Context(), topic, opts...)
				return report(cmd.OutOrStdout(), res, err, out)
			})
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "research topic")
	cmd.Flags().StringVar(&threadID, "thread", "", "thread ID for checkpoints (generated when empty)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the report as markdown to this path")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "override workflow.max_steps")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newResumeCmd(configPath *string) *cobra.Command {
	var (
		threadID string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue a checkpointed thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(a *app.Application) error {
				res, err := a.Resume(cmd.Context(), threadID)
				return report(cmd.OutOrStdout(), res, err, out)
			})
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread ID to resume")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the report as markdown to this path")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}

func newReplCmd(configPath *string) *cobra.Command {
	var transcriptDir string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Research topics interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(a *app.Application) error {
				r, err := repl.NewREPL(cmd.Context(),
					repl.WithResearcher(a),
					repl.WithTranscriptDir(transcriptDir),
					repl.WithOutput(cmd.OutOrStdout()),
				)
				if err != nil {
					return err
				}
				defer r.Close()
				return r.Run()
			})
		},
	}
	cmd.Flags().StringVar(&transcriptDir, "transcripts", "", "transcript directory (default ~/.researchteam/sessions)")
	return cmd
}

func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web form and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(a *app.Application) error {
				cfg := a.Config().Server
				if addr == "" {
					addr = cfg.Addr
				}
				return server.New(a, a.Registry(), cfg).Start(cmd.Context(), addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

// report prints a run's outcome and optionally exports it.
func report(w io.Writer, res *workflow.Result, runErr error, out string) error {
	if res == nil {
		return runErr
	}
	if errors.Is(runErr, app.ErrNoReport) && res.Truncated {
		fmt.Fprintf(w, "Thread %s stopped after %d steps without a report; continue with: resume --thread %s\n",
			res.ThreadID, res.Steps, res.ThreadID)
	} else if runErr == nil {
		fmt.Fprintln(w, res.State.FinalReport)
		fmt.Fprintf(w, "\nthread: %s, steps: %d\n", res.ThreadID, res.Steps)
	}

	if out != "" {
		if err := persistence.WriteReport(out, res); err != nil {
			return errors.Join(runErr, fmt.Errorf("write report: %w", err))
		}
		fmt.Fprintf(w, "report written to %s\n", out)
	}
	return runErr
}
