package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/go-kratos/blades"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchteam/internal/workflow"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogging_Passthrough(t *testing.T) {
	logs := captureLogs(t)

	next := func(_ context.Context, s workflow.State) (workflow.State, error) {
		out := s.WithMessages(blades.AssistantMessage("response"))
		out.Next = "analyst"
		return out, nil
	}

	out, err := Logging("researcher", next)(context.Background(), workflow.State{CurrentAgent: "start"})
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "response", out.Messages[0].Text())

	assert.Contains(t, logs.String(), "workflow.hop.start")
	assert.Contains(t, logs.String(), "workflow.hop.complete")
	assert.Contains(t, logs.String(), "node=researcher")
	assert.Contains(t, logs.String(), "next=analyst")
}

func TestLogging_ErrorPassthrough(t *testing.T) {
	logs := captureLogs(t)
	testErr := errors.New("boom")

	next := func(_ context.Context, s workflow.State) (workflow.State, error) {
		return s, testErr
	}

	_, err := Logging("writer", next)(context.Background(), workflow.State{})
	require.ErrorIs(t, err, testErr)
	assert.Contains(t, logs.String(), "workflow.hop.failed")
	assert.Contains(t, logs.String(), "error=boom")
}

func TestLogging_ContextPreserved(t *testing.T) {
	type key struct{}
	next := func(ctx context.Context, s workflow.State) (workflow.State, error) {
		assert.Equal(t, "test-value", ctx.Value(key{}))
		return s, nil
	}

	ctx := context.WithValue(context.Background(), key{}, "test-value")
	_, err := Logging("analyst", next)(ctx, workflow.State{})
	assert.NoError(t, err)
}
