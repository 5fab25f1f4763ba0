package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-kratos/blades"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopGraph builds a hub node that routes to a worker until the worker has
// run `rounds` times, then to END.
func loopGraph(t *testing.T, rounds int, opts ...CompileOption) *Runnable {
	t.Helper()

	hub := func(_ context.Context, s State) (State, error) {
		out := s.Clone()
		if len(s.Messages) >= rounds {
			out.Next = "done"
		} else {
			out.Next = "work"
		}
		out.CurrentAgent = "hub"
		return out, nil
	}
	worker := func(_ context.Context, s State) (State, error) {
		out := s.WithMessages(blades.AssistantMessage("tick"))
		out.CurrentAgent = "worker"
		return out, nil
	}

	r, err := NewGraph().
		AddNode("hub", hub).
		AddNode("worker", worker).
		AddConditionalEdges("hub", func(s State) string { return s.Next }, map[string]string{
			"work": "worker",
			"done": END,
		}).
		AddEdge("worker", "hub").
		SetEntryPoint("hub").
		Compile(opts...)
	require.NoError(t, err)
	return r
}

func TestInvokeReachesEnd(t *testing.T) {
	r := loopGraph(t, 2)

	res, err := r.Invoke(context.Background(), State{})
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	assert.Equal(t, 5, res.Steps) // hub worker hub worker hub
	assert.Len(t, res.State.Messages, 2)
	assert.Equal(t, "hub", res.State.CurrentAgent)
	assert.NotEmpty(t, res.ThreadID)
}

func TestInvokeTruncatesAtMaxSteps(t *testing.T) {
	r := loopGraph(t, 100)

	res, err := r.Invoke(context.Background(), State{})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, DefaultMaxSteps, res.Steps)

	res, err = r.Invoke(context.Background(), State{}, WithMaxSteps(3))
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 3, res.Steps)
}

func TestInvokeDefaultMaxStepsOption(t *testing.T) {
	r := loopGraph(t, 100, WithDefaultMaxSteps(4))

	res, err := r.Invoke(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Steps)
}

func TestStreamYieldsSteps(t *testing.T) {
	r := loopGraph(t, 1)

	var nodes, nexts []string
	var indexes []int
	for step, err := range r.Stream(context.Background(), State{}) {
		require.NoError(t, err)
		nodes = append(nodes, step.Node)
		nexts = append(nexts, step.Next)
		indexes = append(indexes, step.Index)
	}
	assert.Equal(t, []string{"hub", "worker", "hub"}, nodes)
	assert.Equal(t, []string{"worker", "hub", END}, nexts)
	assert.Equal(t, []int{1, 2, 3}, indexes)
}

func TestStreamEarlyBreak(t *testing.T) {
	r := loopGraph(t, 100)

	count := 0
	for _, err := range r.Stream(context.Background(), State{}) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestInvokeUnknownRoute(t *testing.T) {
	r, err := NewGraph().
		AddNode("a", identity).
		AddConditionalEdges("a", func(State) string { return "nowhere" }, map[string]string{"x": END}).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown route "nowhere"`)
}

func TestInvokeNodeError(t *testing.T) {
	boom := errors.New("boom")
	r, err := NewGraph().
		AddNode("a", func(context.Context, State) (State, error) { return State{}, boom }).
		AddEdge("a", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), State{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "node a")
}

func TestInvokeContextCanceled(t *testing.T) {
	r := loopGraph(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Invoke(ctx, State{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestInvokeSavesCheckpoints(t *testing.T) {
	cp := NewMemoryCheckpointer()
	r := loopGraph(t, 1, WithCheckpointer(cp), WithThreadPrefix("test-"))

	res, err := r.Invoke(context.Background(), State{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ThreadID, "test-"))

	saved, err := cp.Load(context.Background(), res.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Step)
	assert.Equal(t, "hub", saved.Node)
	assert.True(t, saved.Finished())
	assert.Len(t, saved.State.Messages, 1)
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	cp := NewMemoryCheckpointer()
	r := loopGraph(t, 3, WithCheckpointer(cp))

	first, err := r.Invoke(ctx, State{}, WithThreadID("thread-1"), WithMaxSteps(2))
	require.NoError(t, err)
	assert.True(t, first.Truncated)
	assert.Equal(t, "thread-1", first.ThreadID)

	second, err := r.Resume(ctx, "thread-1")
	require.NoError(t, err)
	assert.False(t, second.Truncated)
	assert.Len(t, second.State.Messages, 3)

	saved, err := cp.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, 7, saved.Step)

	_, err = r.Resume(ctx, "thread-1")
	require.ErrorIs(t, err, ErrThreadFinished)

	_, err = r.Resume(ctx, "missing")
	require.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestResumeWithoutCheckpointer(t *testing.T) {
	r := loopGraph(t, 1)
	_, err := r.Resume(context.Background(), "x")
	require.ErrorIs(t, err, ErrNoCheckpointer)
}
