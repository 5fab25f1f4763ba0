package agent

import (
	"context"
	"sync"

	"github.com/go-kratos/blades"
)

// stubModel replays replies in order, repeating the last one.
type stubModel struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []*blades.ModelRequest
}

func newStub(replies ...string) *stubModel {
	return &stubModel{replies: replies}
}

func failingStub(err error) *stubModel {
	return &stubModel{err: err}
}

func (m *stubModel) Generate(ctx context.Context, req *blades.ModelRequest) (*blades.ModelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	text := "ok"
	if len(m.replies) > 0 {
		text = m.replies[0]
		if len(m.replies) > 1 {
			m.replies = m.replies[1:]
		}
	}
	return &blades.ModelResponse{Message: blades.AssistantMessage(text)}, nil
}

func (m *stubModel) lastRequest() *blades.ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

func (m *stubModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// blockingModel waits for its context to end.
type blockingModel struct{}

func (blockingModel) Generate(ctx context.Context, _ *blades.ModelRequest) (*blades.ModelResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type stubCompactor struct {
	keep int
	err  error
}

func (c stubCompactor) Compact(_ context.Context, messages []*blades.Message) ([]*blades.Message, error) {
	if c.err != nil {
		return nil, c.err
	}
	if len(messages) <= c.keep {
		return messages, nil
	}
	return messages[len(messages)-c.keep:], nil
}
