package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// END is the reserved target that terminates a run.
const END = "__end__"

type (
	// NodeFunc maps a state to its successor state. A returned error aborts the run.
	NodeFunc func(ctx context.Context, s State) (State, error)
	// RouterFunc picks a route key for a conditional edge.
	RouterFunc func(s State) string
	// Middleware wraps every node registered on a graph.
	Middleware func(node string, next NodeFunc) NodeFunc
)

type conditionalEdge struct {
	router RouterFunc
	routes map[string]string
}

// Graph is a builder for a directed state graph. Registration errors are
// collected and reported by Compile.
type Graph struct {
	nodes       map[string]NodeFunc
	edges       map[string][]string
	conditional map[string]conditionalEdge
	entry       string
	middleware  []Middleware
	errs        []error
}

func NewGraph() *Graph {
	return &Graph{
		nodes:       make(map[string]NodeFunc),
		edges:       make(map[string][]string),
		conditional: make(map[string]conditionalEdge),
	}
}

func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	switch {
	case name == "" || name == END:
		g.errs = append(g.errs, fmt.Errorf("invalid node name %q", name))
	case fn == nil:
		g.errs = append(g.errs, fmt.Errorf("node %s: nil function", name))
	default:
		if _, ok := g.nodes[name]; ok {
			g.errs = append(g.errs, fmt.Errorf("node %s already added", name))
			return g
		}
		g.nodes[name] = fn
	}
	return g
}

func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdges routes from a node to routes[router(state)].
func (g *Graph) AddConditionalEdges(from string, router RouterFunc, routes map[string]string) *Graph {
	if router == nil {
		g.errs = append(g.errs, fmt.Errorf("node %s: nil router", from))
		return g
	}
	if _, ok := g.conditional[from]; ok {
		g.errs = append(g.errs, fmt.Errorf("node %s already has conditional edges", from))
		return g
	}
	copied := make(map[string]string, len(routes))
	for k, v := range routes {
		copied[k] = v
	}
	g.conditional[from] = conditionalEdge{router: router, routes: copied}
	return g
}

func (g *Graph) SetEntryPoint(name string) *Graph {
	g.entry = name
	return g
}

// Use registers middleware applied to every node in registration order; the
// first middleware is the outermost.
func (g *Graph) Use(mw ...Middleware) *Graph {
	g.middleware = append(g.middleware, mw...)
	return g
}

// Compile validates the graph and returns an executable Runnable.
func (g *Graph) Compile(opts ...CompileOption) (*Runnable, error) {
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("compile graph: %w", err)
	}

	o := compileOptions{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runnable{
		nodes:        make(map[string]NodeFunc, len(g.nodes)),
		edges:        make(map[string]string, len(g.edges)),
		conditional:  make(map[string]conditionalEdge, len(g.conditional)),
		entry:        g.entry,
		checkpointer: o.checkpointer,
		maxSteps:     o.maxSteps,
		threadPrefix: o.threadPrefix,
	}
	for name, fn := range g.nodes {
		wrapped := fn
		for i := len(g.middleware) - 1; i >= 0; i-- {
			wrapped = g.middleware[i](name, wrapped)
		}
		r.nodes[name] = wrapped
	}
	for from, targets := range g.edges {
		r.edges[from] = targets[0]
	}
	for from, c := range g.conditional {
		r.conditional[from] = c
	}
	return r, nil
}

func (g *Graph) validate() error {
	errs := append([]error(nil), g.errs...)

	if g.entry == "" {
		errs = append(errs, errors.New("entry point not set"))
	} else if _, ok := g.nodes[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry point %s is not a node", g.entry))
	}

	known := func(name string) bool {
		if name == END {
			return true
		}
		_, ok := g.nodes[name]
		return ok
	}

	for _, from := range sortedKeys(g.edges) {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown node %s", from))
		}
		for _, to := range g.edges[from] {
			if !known(to) {
				errs = append(errs, fmt.Errorf("edge %s -> %s: unknown target", from, to))
			}
		}
	}
	for _, from := range sortedKeys(g.conditional) {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("conditional edge from unknown node %s", from))
		}
		c := g.conditional[from]
		for _, key := range sortedKeys(c.routes) {
			if !known(c.routes[key]) {
				errs = append(errs, fmt.Errorf("route %s -> %s (%s): unknown target", from, c.routes[key], key))
			}
		}
	}

	for _, name := range sortedKeys(g.nodes) {
		out := len(g.edges[name])
		if _, ok := g.conditional[name]; ok {
			out++
		}
		switch {
		case out == 0:
			errs = append(errs, fmt.Errorf("node %s has no outgoing edge", name))
		case out > 1:
			errs = append(errs, fmt.Errorf("node %s has more than one outgoing edge", name))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
