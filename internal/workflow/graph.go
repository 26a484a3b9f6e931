// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"errors"
	"fmt"
)

// END is the terminal pseudo-node.
const END = "END"

var (
	// ErrEntryPointNotSet is returned by Compile when no entry is configured.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrUnknownNode is returned when an edge or router names a node that
	// was never added.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNoOutgoingEdge is returned when a node has neither an edge nor a
	// router.
	ErrNoOutgoingEdge = errors.New("no outgoing edge")

	// ErrStepLimit is returned when a run visits more nodes than allowed.
	ErrStepLimit = errors.New("step limit exceeded")
)

// DefaultMaxSteps bounds the node visits of one Invoke.
const DefaultMaxSteps = 25

// NodeFunc is one unit of work in the graph.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Router picks the next node from the current state.
type Router[S any] func(ctx context.Context, state S) string

// Listener observes every node just before it runs.
type Listener[S any] func(ctx context.Context, node string, state S)

// Graph is a typed state graph executed one node at a time. A node has
// either one static edge or one router.
type Graph[S any] struct {
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	routers     map[string]Router[S]
	entry       string
	entryRouter Router[S]
	listeners   []Listener[S]
	maxSteps    int
}

// NewGraph returns an empty graph.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:    make(map[string]NodeFunc[S]),
		edges:    make(map[string]string),
		routers:  make(map[string]Router[S]),
		maxSteps: DefaultMaxSteps,
	}
}

// AddNode registers fn under name, replacing any previous node.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) {
	g.nodes[name] = fn
}

// AddEdge routes from unconditionally to to.
func (g *Graph[S]) AddEdge(from, to string) {
	g.edges[from] = to
}

// AddConditionalEdge routes from to whatever route returns.
func (g *Graph[S]) AddConditionalEdge(from string, route Router[S]) {
	g.routers[from] = route
}

// SetEntryPoint starts every run at name.
func (g *Graph[S]) SetEntryPoint(name string) {
	g.entry = name
	g.entryRouter = nil
}

// SetConditionalEntryPoint picks the first node from the initial state.
func (g *Graph[S]) SetConditionalEntryPoint(route Router[S]) {
	g.entryRouter = route
	g.entry = ""
}

// SetMaxSteps bounds node visits per run. Non-positive values restore the
// default.
func (g *Graph[S]) SetMaxSteps(n int) {
	if n <= 0 {
		n = DefaultMaxSteps
	}
	g.maxSteps = n
}

// AddListener registers fn to observe node visits.
func (g *Graph[S]) AddListener(fn Listener[S]) {
	g.listeners = append(g.listeners, fn)
}

// Compile checks the static structure and returns a runnable graph.
// Router targets can only be checked at run time.
func (g *Graph[S]) Compile() (*Runnable[S], error) {
	if g.entry == "" && g.entryRouter == nil {
		return nil, ErrEntryPointNotSet
	}
	if g.entry != "" && !g.known(g.entry) {
		return nil, fmt.Errorf("%w: entry %q", ErrUnknownNode, g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: edge from %q", ErrUnknownNode, from)
		}
		if !g.known(to) {
			return nil, fmt.Errorf("%w: edge to %q", ErrUnknownNode, to)
		}
	}
	for from := range g.routers {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: router from %q", ErrUnknownNode, from)
		}
	}
	for name := range g.nodes {
		_, hasEdge := g.edges[name]
		_, hasRouter := g.routers[name]
		if !hasEdge && !hasRouter {
			return nil, fmt.Errorf("%w: %q", ErrNoOutgoingEdge, name)
		}
	}
	return &Runnable[S]{graph: g}, nil
}

func (g *Graph[S]) known(name string) bool {
	if name == END {
		return true
	}
	_, ok := g.nodes[name]
	return ok
}

// Runnable is a compiled Graph.
type Runnable[S any] struct {
	graph *Graph[S]
}

// Invoke runs the graph from its entry point until END. The returned state
// is the state after the last node that ran, also when an error occurs.
func (r *Runnable[S]) Invoke(ctx context.Context, state S) (S, error) {
	g := r.graph
	node := g.entry
	if g.entryRouter != nil {
		node = g.entryRouter(ctx, state)
	}

	for steps := 0; node != END; steps++ {
		if steps >= g.maxSteps {
			return state, fmt.Errorf("%w: %d steps, next node %q", ErrStepLimit, g.maxSteps, node)
		}
		fn, ok := g.nodes[node]
		if !ok {
			return state, fmt.Errorf("%w: %q", ErrUnknownNode, node)
		}
		for _, l := range g.listeners {
			l(ctx, node, state)
		}

		next, err := fn(ctx, state)
		if err != nil {
			return state, fmt.Errorf("node %s: %w", node, err)
		}
		state = next

		if route, ok := g.routers[node]; ok {
			node = route(ctx, state)
		} else {
			node = g.edges[node]
		}
	}
	return state, nil
}
