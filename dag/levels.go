package dag

import (
	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// BuildLevels uses Kahn's algorithm to group nodes by dependency level.
// Nodes within the same level can execute in parallel and are listed in
// declaration order. Returns a DEPENDENCY_CYCLE error if a cycle is detected.
func BuildLevels(g *Graph) ([][]string, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	for _, name := range g.Nodes {
		inDegree[name] = 0
	}
	for _, e := range g.Edges {
		if _, ok := inDegree[e.From]; !ok {
			return nil, errors.UndefinedDependency(e.To, e.From)
		}
		if _, ok := inDegree[e.To]; !ok {
			return nil, errors.Newf(errors.ErrCodeUndefinedDependency, "edge references unknown node %q", e.To)
		}
		inDegree[e.To]++
	}
	dependents := g.dependents()

	// Collect nodes with no incoming edges (level 0)
	var queue []string
	for _, name := range g.Nodes {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	order := make(map[string]int, len(g.Nodes))
	for i, name := range g.Nodes {
		order[name] = i
	}

	var levels [][]string
	visited := 0

	for len(queue) > 0 {
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = insertOrdered(next, dep, order)
				}
			}
		}
		queue = next
	}

	if visited != len(g.Nodes) {
		return nil, errors.DependencyCycle(FindCycle(g))
	}
	return levels, nil
}

// Levels validates steps and returns their dependency levels.
func Levels(steps []Step) ([][]string, error) {
	g, err := NewGraph(steps)
	if err != nil {
		return nil, err
	}
	return BuildLevels(g)
}

func insertOrdered(names []string, name string, order map[string]int) []string {
	i := len(names)
	for i > 0 && order[names[i-1]] > order[name] {
		i--
	}
	names = append(names, "")
	copy(names[i+1:], names[i:])
	names[i] = name
	return names
}
