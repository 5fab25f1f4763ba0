package logger

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/researchteam/config"
)

// Initialize installs the default slog logger described by cfg and redirects
// the standard library logger into it. The returned closer releases the log
// file when output is not stdout/stderr.
func Initialize(cfg config.LogConfig) io.Closer {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var (
		writer io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	switch cfg.Output {
	case "", "stdout":
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", cfg.Output, err)
		} else {
			writer = f
			closer = f
		}
	}

	handler := NewHandler(writer, cfg.Format, opts)
	slog.SetDefault(slog.New(handler))
	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(handler, level).Writer())
	return closer
}

// NewHandler returns a JSON handler for format "json" and a text handler otherwise.
func NewHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
