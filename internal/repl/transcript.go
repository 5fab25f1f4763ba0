package repl

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TranscriptWriter records the topics entered in a session and the reports
// produced for them.
type TranscriptWriter interface {
	WriteTopic(topic string) error
	// WriteReport records the outcome of a run under its thread ID.
	WriteReport(threadID, report string) error
	WriteError(err error) error
	Flush() error
	Path() string
	Close() error
}

// FileTranscriptWriter appends a markdown transcript to one file per session.
type FileTranscriptWriter struct {
	path       string
	file       *os.File
	mu         sync.Mutex
	headerDone bool
}

// DefaultTranscriptDir returns ~/.researchteam/sessions.
func DefaultTranscriptDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".researchteam", "sessions"), nil
}

func NewFileTranscriptWriter(sessionID string) (*FileTranscriptWriter, error) {
	return NewFileTranscriptWriterWithDir(sessionID, "")
}

// NewFileTranscriptWriterWithDir opens <dir>/<sessionID>.md for appending.
// An empty dir selects DefaultTranscriptDir.
func NewFileTranscriptWriterWithDir(sessionID, dir string) (*FileTranscriptWriter, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	if dir == "" {
		var err error
		dir, err = DefaultTranscriptDir()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	path := filepath.Join(dir, sessionID+".md")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open transcript file: %w", err)
	}

	return &FileTranscriptWriter{
		path: path,
		file: file,
	}, nil
}

func (w *FileTranscriptWriter) Path() string {
	return w.path
}

func (w *FileTranscriptWriter) writeHeader() error {
	if w.headerDone {
		return nil
	}

	header := fmt.Sprintf("# Research Session\n\n_Started: %s_\n\n---\n\n",
		time.Now().Format("2006-01-02 15:04:05"))

	if _, err := w.file.WriteString(header); err != nil {
		return err
	}
	w.headerDone = true
	return nil
}

func (w *FileTranscriptWriter) write(entry string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("transcript %s is closed", w.path)
	}
	if err := w.writeHeader(); err != nil {
		return err
	}
	if _, err := w.file.WriteString(entry); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *FileTranscriptWriter) WriteTopic(topic string) error {
	if err := w.write(fmt.Sprintf("## Topic\n\n%s\n\n", topic)); err != nil {
		return fmt.Errorf("write topic: %w", err)
	}
	return nil
}

func (w *FileTranscriptWriter) WriteReport(threadID, report string) error {
	entry := fmt.Sprintf("## Report\n\n_Thread: %s_\n\n%s\n\n---\n\n", threadID, report)
	if err := w.write(entry); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func (w *FileTranscriptWriter) WriteError(runErr error) error {
	if err := w.write(fmt.Sprintf("## Error\n\n%s\n\n---\n\n", runErr)); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

func (w *FileTranscriptWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *FileTranscriptWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync before close: %w", err)
	}

	err := w.file.Close()
	w.file = nil
	return err
}

// NopTranscriptWriter discards everything.
type NopTranscriptWriter struct{}

func (NopTranscriptWriter) WriteTopic(string) error          { return nil }
func (NopTranscriptWriter) WriteReport(string, string) error { return nil }
func (NopTranscriptWriter) WriteError(error) error           { return nil }
func (NopTranscriptWriter) Flush() error                     { return nil }
func (NopTranscriptWriter) Path() string                     { return "" }
func (NopTranscriptWriter) Close() error                     { return nil }
