package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/google/uuid"

	"github.com/researchteam/internal/workflow"
)

// Researcher runs and resumes research threads.
type Researcher interface {
	Research(ctx context.Context, topic string, opts ...workflow.RunOption) (*workflow.Result, error)
	Resume(ctx context.Context, threadID string, opts ...workflow.RunOption) (*workflow.Result, error)
}

// REPL reads research topics interactively. Every line is a new thread
// unless it is one of the built-in commands.
type REPL struct {
	researcher        Researcher
	sessionID         string
	transcript        TranscriptWriter
	transcriptDir     string
	transcriptEnabled bool
	promptPrefix      string
	out               io.Writer
	lastThread        string

	ctx    context.Context
	cancel context.CancelFunc
	done   bool
}

func NewREPL(ctx context.Context, opts ...Option) (*REPL, error) {
	rctx, cancel := context.WithCancel(ctx)
	r := &REPL{
		sessionID:         uuid.NewString(),
		ctx:               rctx,
		cancel:            cancel,
		promptPrefix:      "topic> ",
		transcriptEnabled: true,
		out:               os.Stdout,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			cancel()
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if r.researcher == nil {
		cancel()
		return nil, fmt.Errorf("researcher is required")
	}

	if r.transcriptEnabled {
		tw, err := NewFileTranscriptWriterWithDir(r.sessionID, r.transcriptDir)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create transcript writer: %w", err)
		}
		r.transcript = tw
		slog.Info("repl.transcript.enabled", "path", tw.Path())
	} else {
		r.transcript = NopTranscriptWriter{}
	}

	return r, nil
}

// Run starts the prompt and blocks until the user exits.
func (r *REPL) Run() error {
	slog.Info("repl.start", "session_id", r.sessionID)
	fmt.Fprintln(r.out, "Research team ready. Enter a topic, 'help' for commands, or press Ctrl+D to exit.")

	p := prompt.New(
		r.executor,
		r.completer,
		prompt.OptionPrefix(r.promptPrefix),
		prompt.OptionTitle("researchteam"),
		prompt.OptionPrefixTextColor(prompt.Cyan),
		prompt.OptionPreviewSuggestionTextColor(prompt.Blue),
		prompt.OptionSelectedSuggestionBGColor(prompt.LightGray),
		prompt.OptionSuggestionBGColor(prompt.DarkGray),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return r.done }),
		prompt.OptionAddKeyBind(prompt.KeyBind{
			Key: prompt.ControlC,
			Fn: func(b *prompt.Buffer) {
				r.done = true
				r.cancel()
			},
		}),
	)

	p.Run()
	return nil
}

func (r *REPL) executor(input string) {
	text := strings.TrimSpace(input)
	if text == "" {
		return
	}

	if cmd, threadID, ok := r.parseCommand(text); ok {
		switch cmd {
		case "exit", "quit":
			r.done = true
			fmt.Fprintln(r.out, "Goodbye!")
		case "help":
			r.printHelp()
		case "resume":
			if threadID == "" {
				fmt.Fprintln(r.out, "Usage: resume <thread_id>")
				return
			}
			r.run(func(ctx context.Context) (*workflow.Result, error) {
				return r.researcher.Resume(ctx, threadID)
			})
		}
		return
	}

	if err := r.transcript.WriteTopic(text); err != nil {
		slog.Warn("repl.transcript.write_failed", "error", err)
	}
	r.run(func(ctx context.Context) (*workflow.Result, error) {
		return r.researcher.Research(ctx, text)
	})
}

// parseCommand recognises a built-in command. Anything else, including a
// topic that merely starts with a command word, is researched.
func (r *REPL) parseCommand(text string) (cmd, threadID string, ok bool) {
	fields := strings.Fields(text)
	cmd = strings.ToLower(fields[0])
	switch {
	case len(fields) == 1 && (cmd == "exit" || cmd == "quit" || cmd == "help"):
		return cmd, "", true
	case len(fields) == 1 && cmd == "resume":
		return cmd, r.lastThread, true
	case len(fields) == 2 && cmd == "resume" && (fields[1] == r.lastThread || isThreadID(fields[1])):
		return cmd, fields[1], true
	}
	return "", "", false
}

// isThreadID reports whether id ends in a UUID, as generated thread IDs do
// after their configured prefix.
func isThreadID(id string) bool {
	const uuidLen = 36
	if len(id) < uuidLen {
		return false
	}
	_, err := uuid.Parse(id[len(id)-uuidLen:])
	return err == nil
}

func (r *REPL) run(call func(context.Context) (*workflow.Result, error)) {
	if r.ctx.Err() != nil {
		slog.Error("repl.canceled", "error", r.ctx.Err())
		r.done = true
		return
	}

	res, err := call(r.ctx)
	if res != nil {
		r.lastThread = res.ThreadID
	}
	if err != nil {
		if r.ctx.Err() != nil {
			slog.Error("repl.interrupted", "error", r.ctx.Err())
			r.done = true
			return
		}
		slog.Error("repl.run.failed", "error", err)
		if res != nil && res.Truncated {
			fmt.Fprintf(r.out, "Error: %v (thread %s stopped after %d steps, type 'resume' to continue)\n",
				err, res.ThreadID, res.Steps)
		} else {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
		if werr := r.transcript.WriteError(err); werr != nil {
			slog.Warn("repl.transcript.write_failed", "error", werr)
		}
		return
	}

	fmt.Fprintln(r.out, res.State.FinalReport)
	fmt.Fprintf(r.out, "\n(thread %s, %d steps)\n", res.ThreadID, res.Steps)

	if err := r.transcript.WriteReport(res.ThreadID, res.State.FinalReport); err != nil {
		slog.Warn("repl.transcript.write_failed", "error", err)
	}
}

func (r *REPL) completer(d prompt.Document) []prompt.Suggest {
	suggestions := []prompt.Suggest{
		{Text: "resume", Description: "Continue the last or a given thread"},
		{Text: "exit", Description: "Exit the application"},
		{Text: "quit", Description: "Exit the application"},
		{Text: "help", Description: "Show available commands"},
	}
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, `
Any other input is researched as a new topic.

Available Commands:
  resume [id]  Continue the last thread, or the given one
  help         Show this help message
  exit, quit   Exit the application

Keyboard Shortcuts:
  Ctrl+C      Cancel and exit
  Ctrl+D      Exit
  ↑/↓         Navigate history`)
}

// Close flushes the transcript and cancels any in-flight run.
func (r *REPL) Close() error {
	slog.Info("repl.close", "session_id", r.sessionID)

	var errs []error
	if err := r.transcript.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush transcript: %w", err))
	}
	if err := r.transcript.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transcript: %w", err))
	}

	if r.cancel != nil {
		r.cancel()
	}
	return errors.Join(errs...)
}
