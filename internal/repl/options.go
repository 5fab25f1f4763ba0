package repl

import "io"

// Option is a functional option for configuring the REPL.
type Option func(*REPL) error

// WithResearcher sets the team the REPL sends topics to.
func WithResearcher(r Researcher) Option {
	return func(repl *REPL) error {
		repl.researcher = r
		return nil
	}
}

// WithTranscriptDir sets a custom directory for transcript files.
// If not set, defaults to ~/.researchteam/sessions.
func WithTranscriptDir(dir string) Option {
	return func(r *REPL) error {
		r.transcriptDir = dir
		return nil
	}
}

// WithoutTranscript disables transcript files.
func WithoutTranscript() Option {
	return func(r *REPL) error {
		r.transcriptEnabled = false
		return nil
	}
}

// WithPrompt sets a custom prompt prefix.
// Default is "topic> ".
func WithPrompt(prefix string) Option {
	return func(r *REPL) error {
		r.promptPrefix = prefix
		return nil
	}
}

func WithOutput(w io.Writer) Option {
	return func(r *REPL) error {
		r.out = w
		return nil
	}
}
