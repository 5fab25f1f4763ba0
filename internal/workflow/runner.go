package workflow

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSteps bounds the number of node executions in one run.
const DefaultMaxSteps = 12

var (
	ErrThreadFinished = errors.New("thread already finished")
	ErrNoCheckpointer = errors.New("no checkpointer configured")
)

// Step is one node execution. Next is the node selected to run after it,
// or END.
type Step struct {
	Index int
	Node  string
	Next  string
	State State
}

// Result is the outcome of a complete run.
type Result struct {
	ThreadID  string
	State     State
	Steps     int
	Truncated bool
}

type compileOptions struct {
	checkpointer Checkpointer
	maxSteps     int
	threadPrefix string
}

type CompileOption func(*compileOptions)

// WithCheckpointer saves a checkpoint after every step.
func WithCheckpointer(cp Checkpointer) CompileOption {
	return func(o *compileOptions) { o.checkpointer = cp }
}

// WithDefaultMaxSteps sets the step bound used when a run does not override it.
func WithDefaultMaxSteps(n int) CompileOption {
	return func(o *compileOptions) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithThreadPrefix prefixes generated thread IDs.
func WithThreadPrefix(prefix string) CompileOption {
	return func(o *compileOptions) { o.threadPrefix = prefix }
}

type runOptions struct {
	threadID string
	maxSteps int
}

type RunOption func(*runOptions)

func WithThreadID(id string) RunOption {
	return func(o *runOptions) { o.threadID = id }
}

func WithMaxSteps(n int) RunOption {
	return func(o *runOptions) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// Runnable is a compiled graph.
type Runnable struct {
	nodes        map[string]NodeFunc
	edges        map[string]string
	conditional  map[string]conditionalEdge
	entry        string
	checkpointer Checkpointer
	maxSteps     int
	threadPrefix string
}

// Stream executes the graph from its entry point and yields every step.
// Iteration stops at END, at the step bound, or on the first error.
func (r *Runnable) Stream(ctx context.Context, initial State, opts ...RunOption) iter.Seq2[Step, error] {
	ro := r.runOptions(opts)
	return r.stream(ctx, ro, r.entry, 0, initial)
}

// Invoke runs the graph to completion and returns the final state.
func (r *Runnable) Invoke(ctx context.Context, initial State, opts ...RunOption) (*Result, error) {
	ro := r.runOptions(opts)
	return r.collect(ctx, ro, r.stream(ctx, ro, r.entry, 0, initial), initial)
}

// Resume continues a checkpointed thread from the node its last step
// selected, with a fresh step budget.
func (r *Runnable) Resume(ctx context.Context, threadID string, opts ...RunOption) (*Result, error) {
	if r.checkpointer == nil {
		return nil, ErrNoCheckpointer
	}
	cp, err := r.checkpointer.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("resume thread %s: %w", threadID, err)
	}
	if cp.Next == END {
		return nil, fmt.Errorf("resume thread %s: %w", threadID, ErrThreadFinished)
	}
	if _, ok := r.nodes[cp.Next]; !ok {
		return nil, fmt.Errorf("resume thread %s: unknown node %s", threadID, cp.Next)
	}

	ro := r.runOptions(opts)
	ro.threadID = threadID
	slog.Info("workflow.run.resume", "thread_id", threadID, "node", cp.Next, "step", cp.Step)
	return r.collect(ctx, ro, r.stream(ctx, ro, cp.Next, cp.Step, cp.State), cp.State)
}

func (r *Runnable) runOptions(opts []RunOption) *runOptions {
	ro := &runOptions{maxSteps: r.maxSteps}
	for _, opt := range opts {
		opt(ro)
	}
	if ro.threadID == "" {
		ro.threadID = r.threadPrefix + uuid.NewString()
	}
	return ro
}

func (r *Runnable) collect(ctx context.Context, ro *runOptions, steps iter.Seq2[Step, error], initial State) (*Result, error) {
	res := &Result{ThreadID: ro.threadID, State: initial}
	last := ""
	for step, err := range steps {
		if err != nil {
			return nil, err
		}
		res.State = step.State
		res.Steps++
		last = step.Next
	}
	res.Truncated = res.Steps > 0 && last != END
	if res.Truncated {
		slog.Warn("workflow.run.truncated", "thread_id", ro.threadID, "steps", res.Steps, "next", last)
	} else {
		slog.Info("workflow.run.complete", "thread_id", ro.threadID, "steps", res.Steps)
	}
	return res, nil
}

func (r *Runnable) stream(ctx context.Context, ro *runOptions, start string, offset int, initial State) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		state := initial
		node := start
		for i := 0; i < ro.maxSteps; i++ {
			if err := ctx.Err(); err != nil {
				yield(Step{}, err)
				return
			}

			fn, ok := r.nodes[node]
			if !ok {
				yield(Step{}, fmt.Errorf("unknown node %s", node))
				return
			}
			next, err := fn(ctx, state)
			if err != nil {
				yield(Step{}, fmt.Errorf("node %s: %w", node, err))
				return
			}
			state = next

			successor, err := r.successor(node, state)
			if err != nil {
				yield(Step{}, err)
				return
			}

			step := Step{Index: offset + i + 1, Node: node, Next: successor, State: state}
			if r.checkpointer != nil {
				cp := Checkpoint{
					ThreadID:  ro.threadID,
					Step:      step.Index,
					Node:      node,
					Next:      successor,
					State:     state,
					UpdatedAt: time.Now().UTC(),
				}
				if err := r.checkpointer.Save(ctx, cp); err != nil {
					yield(Step{}, fmt.Errorf("save checkpoint: %w", err))
					return
				}
			}

			if !yield(step, nil) || successor == END {
				return
			}
			node = successor
		}
	}
}

func (r *Runnable) successor(node string, s State) (string, error) {
	if to, ok := r.edges[node]; ok {
		return to, nil
	}
	c, ok := r.conditional[node]
	if !ok {
		return "", fmt.Errorf("node %s has no outgoing edge", node)
	}
	key := c.router(s)
	to, ok := c.routes[key]
	if !ok {
		return "", fmt.Errorf("node %s: unknown route %q", node, key)
	}
	return to, nil
}
