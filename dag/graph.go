package dag

import (
	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// Step is the view of a workflow step needed to build its dependency graph.
type Step interface {
	StepName() string
	Dependencies() []string
}

// Graph declares nodes and edges (dependency relationships).
// Nodes keep declaration order so every traversal is deterministic.
type Graph struct {
	Nodes []string
	Edges []Edge
}

// Edge represents a dependency: To depends on From.
type Edge struct {
	From string
	To   string
}

// NewGraph builds the dependency graph for steps.
// It fails on duplicate step names and on dependencies naming unknown steps.
func NewGraph(steps []Step) (*Graph, error) {
	g := &Graph{Nodes: make([]string, 0, len(steps))}
	seen := make(map[string]struct{}, len(steps))

	for _, s := range steps {
		name := s.StepName()
		if _, dup := seen[name]; dup {
			return nil, errors.DuplicateStep(name)
		}
		seen[name] = struct{}{}
		g.Nodes = append(g.Nodes, name)
	}

	for _, s := range steps {
		for _, dep := range s.Dependencies() {
			if _, ok := seen[dep]; !ok {
				return nil, errors.UndefinedDependency(s.StepName(), dep)
			}
			g.Edges = append(g.Edges, Edge{From: dep, To: s.StepName()})
		}
	}
	return g, nil
}

// Validate checks that step names are unique, every dependency is defined
// and the graph is acyclic. It returns nil for a valid workflow.
func Validate(steps []Step) error {
	g, err := NewGraph(steps)
	if err != nil {
		return err
	}
	if cycle := FindCycle(g); cycle != nil {
		return errors.DependencyCycle(cycle)
	}
	return nil
}

// dependents returns the adjacency list from -> [to...] in edge order.
func (g *Graph) dependents() map[string][]string {
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	return adj
}

// FindCycle returns one cycle in g as a path whose first node is repeated at
// the end, or nil when g is acyclic. Roots and neighbours are visited in
// declaration order so the same graph always yields the same path.
func FindCycle(g *Graph) []string {
	const (
		white = iota
		grey
		black
	)

	adj := g.dependents()
	color := make(map[string]int, len(g.Nodes))
	var path []string

	var visit func(n string) []string
	visit = func(n string) []string {
		color[n] = grey
		path = append(path, n)
		for _, next := range adj[n] {
			switch color[next] {
			case grey:
				for i, p := range path {
					if p == next {
						cycle := make([]string, 0, len(path)-i+1)
						cycle = append(cycle, path[i:]...)
						return append(cycle, next)
					}
				}
			case white:
				if c := visit(next); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return nil
	}

	for _, n := range g.Nodes {
		if color[n] != white {
			continue
		}
		if c := visit(n); c != nil {
			return c
		}
	}
	return nil
}
