package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/blades"
)

var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Checkpoint is the state of a thread after one step.
type Checkpoint struct {
	ThreadID  string
	Step      int
	Node      string
	Next      string
	State     State
	UpdatedAt time.Time
}

// Finished reports whether the thread reached END.
func (c Checkpoint) Finished() bool {
	return c.Next == END
}

type Checkpointer interface {
	Save(ctx context.Context, cp Checkpoint) error
	Load(ctx context.Context, threadID string) (Checkpoint, error)
}

// MemoryCheckpointer keeps the latest checkpoint per thread in process memory.
type MemoryCheckpointer struct {
	mu      sync.RWMutex
	threads map[string]Checkpoint
}

func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{threads: make(map[string]Checkpoint)}
}

func (m *MemoryCheckpointer) Save(_ context.Context, cp Checkpoint) error {
	if cp.ThreadID == "" {
		return errors.New("checkpoint thread id is required")
	}
	cp.State = cp.State.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[cp.ThreadID] = cp
	return nil
}

func (m *MemoryCheckpointer) Load(_ context.Context, threadID string) (Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.threads[threadID]
	if !ok {
		return Checkpoint{}, fmt.Errorf("%w: %s", ErrCheckpointNotFound, threadID)
	}
	cp.State = cp.State.Clone()
	return cp, nil
}

// messageRecord is the serialised form of a text message. Tool parts are
// not carried since the agents never produce them.
type messageRecord struct {
	ID     string `json:"id,omitempty"`
	Role   string `json:"role"`
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

type checkpointRecord struct {
	Version       int                `json:"version"`
	ThreadID      string             `json:"thread_id"`
	Step          int                `json:"step"`
	Node          string             `json:"node"`
	Next          string             `json:"next"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Messages      []messageRecord    `json:"messages"`
	StateNext     string             `json:"state_next"`
	CurrentAgent  string             `json:"current_agent"`
	ResearchTopic string             `json:"research_topic"`
	Findings      map[string]Finding `json:"findings,omitempty"`
	FinalReport   string             `json:"final_report,omitempty"`
}

const checkpointVersion = 1

// EncodeCheckpoint serialises a checkpoint to JSON.
func EncodeCheckpoint(cp Checkpoint) ([]byte, error) {
	rec := checkpointRecord{
		Version:       checkpointVersion,
		ThreadID:      cp.ThreadID,
		Step:          cp.Step,
		Node:          cp.Node,
		Next:          cp.Next,
		UpdatedAt:     cp.UpdatedAt,
		Messages:      make([]messageRecord, 0, len(cp.State.Messages)),
		StateNext:     cp.State.Next,
		CurrentAgent:  cp.State.CurrentAgent,
		ResearchTopic: cp.State.ResearchTopic,
		Findings:      cp.State.Findings,
		FinalReport:   cp.State.FinalReport,
	}
	for _, m := range cp.State.Messages {
		if m == nil {
			continue
		}
		rec.Messages = append(rec.Messages, messageRecord{
			ID:     m.ID,
			Role:   string(m.Role),
			Author: m.Author,
			Text:   m.Text(),
		})
	}
	return json.Marshal(rec)
}

// DecodeCheckpoint is the inverse of EncodeCheckpoint.
func DecodeCheckpoint(data []byte) (Checkpoint, error) {
	var rec checkpointRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	if rec.Version != checkpointVersion {
		return Checkpoint{}, fmt.Errorf("decode checkpoint: unsupported version %d", rec.Version)
	}

	state := State{
		Messages:      make([]*blades.Message, 0, len(rec.Messages)),
		Next:          rec.StateNext,
		CurrentAgent:  rec.CurrentAgent,
		ResearchTopic: rec.ResearchTopic,
		Findings:      rec.Findings,
		FinalReport:   rec.FinalReport,
	}
	if state.Findings == nil {
		state.Findings = map[string]Finding{}
	}
	for _, m := range rec.Messages {
		msg, err := decodeMessage(m)
		if err != nil {
			return Checkpoint{}, err
		}
		state.Messages = append(state.Messages, msg)
	}

	return Checkpoint{
		ThreadID:  rec.ThreadID,
		Step:      rec.Step,
		Node:      rec.Node,
		Next:      rec.Next,
		State:     state,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func decodeMessage(m messageRecord) (*blades.Message, error) {
	var msg *blades.Message
	switch blades.Role(m.Role) {
	case blades.RoleUser:
		msg = blades.UserMessage(m.Text)
	case blades.RoleAssistant:
		msg = blades.AssistantMessage(m.Text)
	case blades.RoleSystem:
		msg = blades.SystemMessage(m.Text)
	default:
		return nil, fmt.Errorf("decode checkpoint: unsupported message role %q", m.Role)
	}
	if m.ID != "" {
		msg.ID = m.ID
	}
	msg.Author = m.Author
	msg.Status = blades.StatusCompleted
	return msg, nil
}
