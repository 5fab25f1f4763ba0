package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kratos/blades"

	"github.com/researchteam/internal/workflow"
)

const (
	markdownHeaderV1    = "<!-- researchteam-report:v1 -->"
	beginReportJSONDump = "<!-- BEGIN_RESEARCHTEAM_REPORT_JSON -->"
	endReportJSONDump   = "<!-- END_RESEARCHTEAM_REPORT_JSON -->"
)

type ReportDumpV1 struct {
	ThreadID    string                      `json:"thread_id"`
	Topic       string                      `json:"topic"`
	Steps       int                         `json:"steps"`
	Truncated   bool                        `json:"truncated,omitempty"`
	FinalReport string                      `json:"final_report"`
	Findings    map[string]workflow.Finding `json:"findings,omitempty"`
	Messages    []MessageV1                 `json:"messages"`
	CreatedAt   time.Time                   `json:"created_at"`
}

type MessageV1 struct {
	Role   string `json:"role"`
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

func BuildDumpV1(res *workflow.Result) (ReportDumpV1, error) {
	if res == nil {
		return ReportDumpV1{}, fmt.Errorf("result is nil")
	}

	messages := make([]MessageV1, 0, len(res.State.Messages))
	for _, m := range res.State.Messages {
		if m == nil {
			continue
		}
		switch m.Role {
		case blades.RoleUser, blades.RoleAssistant:
			messages = append(messages, MessageV1{
				Role:   string(m.Role),
				Author: m.Author,
				Text:   m.Text(),
			})
		}
	}

	return ReportDumpV1{
		ThreadID:    res.ThreadID,
		Topic:       res.State.ResearchTopic,
		Steps:       res.Steps,
		Truncated:   res.Truncated,
		FinalReport: res.State.FinalReport,
		Findings:    res.State.Findings,
		Messages:    messages,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func EncodeMarkdownV1(dump ReportDumpV1) ([]byte, error) {
	body, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(markdownHeaderV1)
	buf.WriteString("\n\n")

	buf.WriteString("# Research Report")
	if topic := strings.TrimSpace(dump.Topic); topic != "" {
		buf.WriteString(": ")
		buf.WriteString(topic)
	}
	buf.WriteString("\n\n")
	if dump.Truncated {
		buf.WriteString("> The run stopped at the step limit before the supervisor finished.\n\n")
	}

	buf.WriteString("## Report\n\n")
	buf.WriteString(strings.TrimSpace(dump.FinalReport))
	buf.WriteString("\n\n")

	if len(dump.Findings) > 0 {
		buf.WriteString("## Findings\n\n")
		for _, key := range (workflow.State{Findings: dump.Findings}).FindingKeys() {
			f := dump.Findings[key]
			buf.WriteString("### ")
			buf.WriteString(key)
			buf.WriteString("\n\n")
			for _, p := range f.KeyPoints {
				buf.WriteString("- ")
				buf.WriteString(p)
				buf.WriteString("\n")
			}
			if len(f.KeyPoints) > 0 {
				buf.WriteString("\n")
			}
			if f.Recommendations != "" {
				buf.WriteString("**Recommendations:** ")
				buf.WriteString(f.Recommendations)
				buf.WriteString("\n\n")
			}
		}
	}

	if len(dump.Messages) > 0 {
		buf.WriteString("## Conversation\n\n")
		for _, m := range dump.Messages {
			role := strings.TrimSpace(m.Role)
			if role == "" {
				role = "unknown"
			}
			buf.WriteString("### ")
			buf.WriteString(role)
			if strings.TrimSpace(m.Author) != "" {
				buf.WriteString(" (")
				buf.WriteString(strings.TrimSpace(m.Author))
				buf.WriteString(")")
			}
			buf.WriteString("\n\n")
			buf.WriteString("```text\n")
			buf.WriteString(m.Text)
			buf.WriteString("\n```\n\n")
		}
	}

	buf.WriteString(beginReportJSONDump)
	buf.WriteString("\n")
	buf.Write(body)
	buf.WriteString("\n")
	buf.WriteString(endReportJSONDump)
	buf.WriteString("\n")

	return buf.Bytes(), nil
}

func DecodeMarkdownV1(markdown []byte) (ReportDumpV1, error) {
	content := string(markdown)

	begin := strings.Index(content, beginReportJSONDump)
	if begin < 0 {
		return ReportDumpV1{}, fmt.Errorf("missing json dump begin marker")
	}
	begin += len(beginReportJSONDump)

	end := strings.Index(content, endReportJSONDump)
	if end < 0 || end < begin {
		return ReportDumpV1{}, fmt.Errorf("missing json dump end marker")
	}

	raw := strings.TrimSpace(content[begin:end])
	var dump ReportDumpV1
	if err := json.Unmarshal([]byte(raw), &dump); err != nil {
		return ReportDumpV1{}, err
	}
	return dump, nil
}

// WriteReport renders res as markdown to path, creating parent directories.
func WriteReport(path string, res *workflow.Result) error {
	dump, err := BuildDumpV1(res)
	if err != nil {
		return err
	}
	md, err := EncodeMarkdownV1(dump)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, md, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// ReadReport loads the dump embedded in a report written by WriteReport.
func ReadReport(path string) (ReportDumpV1, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ReportDumpV1{}, fmt.Errorf("read report %s: %w", path, err)
	}
	return DecodeMarkdownV1(data)
}
