package workflow

import (
	"maps"
	"slices"

	"github.com/go-kratos/blades"
)

// Finding is the structured part of one agent's contribution to a run.
type Finding struct {
	Summary         string   `json:"summary,omitempty"`
	Excerpt         string   `json:"excerpt,omitempty"`
	KeyPoints       []string `json:"key_points,omitempty"`
	Recommendations string   `json:"recommendations,omitempty"`
}

// State is the value passed between nodes. Nodes return an updated copy and
// never mutate the slice or map they received.
type State struct {
	Messages      []*blades.Message
	Next          string
	CurrentAgent  string
	ResearchTopic string
	Findings      map[string]Finding
	FinalReport   string
}

// Clone returns a copy whose message slice and findings map can be modified
// without affecting s. Messages themselves are shared.
func (s State) Clone() State {
	out := s
	out.Messages = slices.Clone(s.Messages)
	out.Findings = make(map[string]Finding, len(s.Findings))
	for k, f := range s.Findings {
		f.KeyPoints = slices.Clone(f.KeyPoints)
		out.Findings[k] = f
	}
	return out
}

// WithMessages returns a copy of s with msgs appended.
func (s State) WithMessages(msgs ...*blades.Message) State {
	out := s.Clone()
	out.Messages = append(out.Messages, msgs...)
	return out
}

// WithFinding returns a copy of s with the finding stored under key.
func (s State) WithFinding(key string, f Finding) State {
	out := s.Clone()
	out.Findings[key] = f
	return out
}

// LastMessage returns the most recent message, or nil.
func (s State) LastMessage() *blades.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// FindingKeys returns the populated finding sections in sorted order.
func (s State) FindingKeys() []string {
	return slices.Sorted(maps.Keys(s.Findings))
}
