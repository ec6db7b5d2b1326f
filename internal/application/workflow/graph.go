package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
)

// Step is one stage of the pipeline. Run must be total: it records failures in
// the state instead of returning them.
type Step interface {
	Name() string
	Run(ctx context.Context, st *analysis.State)
}

// Node names a vertex of the graph.
type Node string

const (
	NodePlan    Node = "plan"
	NodeFetch   Node = "fetch"
	NodeAnalyze Node = "analyze"
	NodeWrite   Node = "write"
	NodeCheck   Node = "check"

	// End is the terminal pseudo-node.
	End Node = "done"
)

// Router picks the next node from the state after a conditional node ran.
type Router func(st *analysis.State) Node

type branch struct {
	route   Router
	targets map[Node]bool
}

// Graph is a directed graph of steps with plain and conditional edges.
type Graph struct {
	nodes    map[Node]Step
	order    []Node
	edges    map[Node]Node
	branches map[Node]branch
	entry    Node
	compiled bool
	errs     []error
}

func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[Node]Step),
		edges:    make(map[Node]Node),
		branches: make(map[Node]branch),
	}
}

func (g *Graph) AddNode(name Node, step Step) *Graph {
	switch {
	case name == "" || name == End:
		g.errs = append(g.errs, fmt.Errorf("workflow graph: invalid node name %q", name))
	case step == nil:
		g.errs = append(g.errs, fmt.Errorf("workflow graph: node %s has no step", name))
	case g.nodes[name] != nil:
		g.errs = append(g.errs, fmt.Errorf("workflow graph: duplicate node %s", name))
	default:
		g.nodes[name] = step
		g.order = append(g.order, name)
	}
	return g
}

func (g *Graph) AddEdge(from, to Node) *Graph {
	if _, ok := g.edges[from]; ok {
		g.errs = append(g.errs, fmt.Errorf("workflow graph: node %s already has an edge", from))
		return g
	}
	g.edges[from] = to
	return g
}

// AddConditionalEdge routes from a node through route; targets lists every node
// route may return.
func (g *Graph) AddConditionalEdge(from Node, route Router, targets ...Node) *Graph {
	if route == nil {
		g.errs = append(g.errs, fmt.Errorf("workflow graph: node %s has a nil router", from))
		return g
	}
	if _, ok := g.branches[from]; ok {
		g.errs = append(g.errs, fmt.Errorf("workflow graph: node %s already has a conditional edge", from))
		return g
	}
	set := make(map[Node]bool, len(targets))
	for _, t := range targets {
		set[t] = true
	}
	g.branches[from] = branch{route: route, targets: set}
	return g
}

func (g *Graph) SetEntry(name Node) *Graph {
	g.entry = name
	return g
}

// Compile validates the graph: the entry exists, every node has exactly one
// outgoing edge kind, and every target is a node or End.
func (g *Graph) Compile() (*Graph, error) {
	errs := append([]error(nil), g.errs...)
	if g.nodes[g.entry] == nil {
		errs = append(errs, fmt.Errorf("workflow graph: entry %q is not a node", g.entry))
	}
	known := func(n Node) bool { return n == End || g.nodes[n] != nil }
	for _, name := range g.order {
		_, plain := g.edges[name]
		_, cond := g.branches[name]
		if plain == cond {
			errs = append(errs, fmt.Errorf("workflow graph: node %s needs exactly one outgoing edge", name))
		}
	}
	for from, to := range g.edges {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("workflow graph: edge from unknown node %s", from))
		}
		if !known(to) {
			errs = append(errs, fmt.Errorf("workflow graph: edge %s -> unknown node %s", from, to))
		}
	}
	for from, b := range g.branches {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("workflow graph: conditional edge from unknown node %s", from))
		}
		for t := range b.targets {
			if !known(t) {
				errs = append(errs, fmt.Errorf("workflow graph: conditional edge %s -> unknown node %s", from, t))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	g.compiled = true
	return g, nil
}

// next returns the node that follows from for the given state.
func (g *Graph) next(from Node, st *analysis.State) (Node, error) {
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	b := g.branches[from]
	to := b.route(st)
	if !b.targets[to] {
		return "", fmt.Errorf("workflow graph: router of %s returned undeclared node %q", from, to)
	}
	return to, nil
}

// Steps are the five stages of an analysis run.
type Steps struct {
	Plan    Step
	Fetch   Step
	Analyze Step
	Write   Step
	Check   Step
}

// Route is the branch taken after the quality check. It reads the
// post-increment iteration count, so a checker that honours the cap ends the
// run after at most MaxIterations+1 checks.
func Route(st *analysis.State) Node {
	if st.QualityCheckPassed || st.IterationCount > analysis.MaxIterations {
		return End
	}
	return NodeFetch
}

// NewAnalysisGraph wires plan → fetch → analyze → write → check, looping back
// to fetch until the quality gate passes.
func NewAnalysisGraph(s Steps) (*Graph, error) {
	return NewGraph().
		AddNode(NodePlan, s.Plan).
		AddNode(NodeFetch, s.Fetch).
		AddNode(NodeAnalyze, s.Analyze).
		AddNode(NodeWrite, s.Write).
		AddNode(NodeCheck, s.Check).
		SetEntry(NodePlan).
		AddEdge(NodePlan, NodeFetch).
		AddEdge(NodeFetch, NodeAnalyze).
		AddEdge(NodeAnalyze, NodeWrite).
		AddEdge(NodeWrite, NodeCheck).
		AddConditionalEdge(NodeCheck, Route, NodeFetch, End).
		Compile()
}
