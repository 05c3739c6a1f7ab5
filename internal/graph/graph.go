// Package graph runs state machines made of named nodes and edges.
//
// A node transforms the state. After a node completes, its outgoing edge
// picks the next node: either a fixed target or the result of a router
// function. Execution stops at End.
package graph

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/imkarma/crew/internal/errors"
)

// End is the terminal pseudo-node.
const End = "__end__"

// DefaultMaxSteps bounds a single run so routing cycles terminate.
const DefaultMaxSteps = 25

// NodeFunc transforms the state.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Router picks the next node from the state.
type Router[S any] func(state S) string

// Observer is told about every completed node.
type Observer[S any] func(node string, state S)

type edge[S any] struct {
	to     string
	router Router[S]
	// targets lists the nodes the router may return.
	targets map[string]bool
}

// Graph is an immutable, compiled state machine.
type Graph[S any] struct {
	entry    string
	nodes    map[string]NodeFunc[S]
	order    []string
	edges    map[string]edge[S]
	maxSteps int
	observer Observer[S]
	logger   zerolog.Logger
}

// Builder assembles a Graph.
type Builder[S any] struct {
	g    *Graph[S]
	errs []error
}

// New starts a graph definition.
func New[S any]() *Builder[S] {
	return &Builder[S]{g: &Graph[S]{
		nodes:    make(map[string]NodeFunc[S]),
		edges:    make(map[string]edge[S]),
		maxSteps: DefaultMaxSteps,
		logger:   zerolog.Nop(),
	}}
}

// AddNode registers a node.
func (b *Builder[S]) AddNode(name string, fn NodeFunc[S]) *Builder[S] {
	if name == End || name == "" {
		b.errs = append(b.errs, fmt.Errorf("invalid node name %q", name))
		return b
	}
	if _, dup := b.g.nodes[name]; dup {
		b.errs = append(b.errs, fmt.Errorf("duplicate node %q", name))
		return b
	}
	b.g.nodes[name] = fn
	b.g.order = append(b.g.order, name)
	return b
}

// SetEntry sets the node Run starts from.
func (b *Builder[S]) SetEntry(name string) *Builder[S] {
	b.g.entry = name
	return b
}

// AddEdge adds a fixed transition.
func (b *Builder[S]) AddEdge(from, to string) *Builder[S] {
	return b.setEdge(from, edge[S]{to: to})
}

// AddConditionalEdge routes from a node through router. targets are the
// nodes the router may pick; they are checked when the graph is built and
// again at run time.
func (b *Builder[S]) AddConditionalEdge(from string, router Router[S], targets ...string) *Builder[S] {
	set := make(map[string]bool, len(targets))
	for _, t := range targets {
		set[t] = true
	}
	return b.setEdge(from, edge[S]{router: router, targets: set})
}

func (b *Builder[S]) setEdge(from string, e edge[S]) *Builder[S] {
	if _, dup := b.g.edges[from]; dup {
		b.errs = append(b.errs, fmt.Errorf("node %q already has an outgoing edge", from))
		return b
	}
	b.g.edges[from] = e
	return b
}

// WithMaxSteps overrides the step limit.
func (b *Builder[S]) WithMaxSteps(n int) *Builder[S] {
	if n > 0 {
		b.g.maxSteps = n
	}
	return b
}

// WithObserver registers a progress callback.
func (b *Builder[S]) WithObserver(fn Observer[S]) *Builder[S] {
	b.g.observer = fn
	return b
}

// WithLogger sets the logger for node transitions.
func (b *Builder[S]) WithLogger(l zerolog.Logger) *Builder[S] {
	b.g.logger = l
	return b
}

// Build validates the definition: the entry exists, every node has an
// outgoing edge, and every edge target is a node or End.
func (b *Builder[S]) Build() (*Graph[S], error) {
	g := b.g
	errs := append([]error(nil), b.errs...)

	if _, ok := g.nodes[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q: %w", g.entry, errors.ErrUnknownNode))
	}
	for _, name := range g.order {
		e, ok := g.edges[name]
		if !ok {
			errs = append(errs, fmt.Errorf("node %q has no outgoing edge", name))
			continue
		}
		targets := e.targets
		if e.router == nil {
			targets = map[string]bool{e.to: true}
		}
		for t := range targets {
			if !g.known(t) {
				errs = append(errs, fmt.Errorf("edge %s -> %s: %w", name, t, errors.ErrUnknownNode))
			}
		}
	}
	for from := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from %q: %w", from, errors.ErrUnknownNode))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("building graph: %w", errors.Join(errs...))
	}
	return g, nil
}

// MustBuild is Build for statically defined graphs.
func (b *Builder[S]) MustBuild() *Graph[S] {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph[S]) known(name string) bool {
	if name == End {
		return true
	}
	_, ok := g.nodes[name]
	return ok
}

// Nodes returns node names in registration order.
func (g *Graph[S]) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Entry returns the entry node.
func (g *Graph[S]) Entry() string { return g.entry }

// Run executes from the entry node until End.
func (g *Graph[S]) Run(ctx context.Context, state S) (S, error) {
	return g.RunFrom(ctx, g.entry, state)
}

// RunFrom executes starting at node. It returns the state as of the last
// completed node together with any error. Exceeding the step limit is
// ErrStepLimit.
func (g *Graph[S]) RunFrom(ctx context.Context, node string, state S) (S, error) {
	if !g.known(node) {
		return state, fmt.Errorf("start %q: %w", node, errors.ErrUnknownNode)
	}

	for steps := 0; node != End; steps++ {
		if steps >= g.maxSteps {
			return state, fmt.Errorf("after %d steps at %q: %w", steps, node, errors.ErrStepLimit)
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}

		g.logger.Debug().Str("node", node).Int("step", steps+1).Msg("running node")
		next, err := g.nodes[node](ctx, state)
		if err != nil {
			return state, fmt.Errorf("node %q: %w", node, err)
		}
		state = next
		if g.observer != nil {
			g.observer(node, state)
		}

		node, err = g.next(node, state)
		if err != nil {
			return state, err
		}
	}
	return state, nil
}

// Continue evaluates the outgoing edge of last, which has already run, and
// executes from wherever it leads.
func (g *Graph[S]) Continue(ctx context.Context, state S, last string) (S, error) {
	if _, ok := g.nodes[last]; !ok {
		return state, fmt.Errorf("continue from %q: %w", last, errors.ErrUnknownNode)
	}
	node, err := g.next(last, state)
	if err != nil {
		return state, err
	}
	return g.RunFrom(ctx, node, state)
}

func (g *Graph[S]) next(from string, state S) (string, error) {
	e := g.edges[from]
	if e.router == nil {
		return e.to, nil
	}
	to := e.router(state)
	if !e.targets[to] || !g.known(to) {
		return "", fmt.Errorf("router of %q chose %q: %w", from, to, errors.ErrUnknownNode)
	}
	g.logger.Debug().Str("from", from).Str("to", to).Msg("routed")
	return to, nil
}
