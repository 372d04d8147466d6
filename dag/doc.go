// Package dag validates the dependency graph of workflow steps.
//
// A workflow is a list of named steps, each declaring the steps it depends
// on. The graph has one node per step and an edge from every dependency to
// its dependent. Validation rejects duplicate names, dependencies on steps
// that do not exist and cycles, reporting one concrete cycle path found by
// a depth-first search in declaration order.
//
// BuildLevels groups nodes into dependency levels (Kahn's algorithm) for
// consumers that want to run independent steps in parallel.
package dag
