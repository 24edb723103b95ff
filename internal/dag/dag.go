// SPDX-License-Identifier: MPL-2.0

// Package dag orders names by their dependencies.
//
// It backs the registration order check of capability modules: when a
// module list is out of order, the topological order of the same modules is
// offered as the fix.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError lists the nodes left unordered by a dependency cycle.
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph whose edges point from a dependency to its
	// dependents. Nodes keep their insertion order.
	Graph struct {
		edges map[string][]string
		nodes []string
		index map[string]bool
	}
)

func (e *CycleError) Error() string {
	return "dependency cycle between " + strings.Join(e.Cycle, ", ")
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		edges: make(map[string][]string),
		index: make(map[string]bool),
	}
}

// AddNode adds name once.
func (g *Graph) AddNode(name string) {
	if g.index[name] {
		return
	}
	g.index[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that dep must come before dependent.
func (g *Graph) AddEdge(dep, dependent string) {
	g.AddNode(dep)
	g.AddNode(dependent)
	g.edges[dep] = append(g.edges[dep], dependent)
}

// Has reports whether name was added.
func (g *Graph) Has(name string) bool {
	return g.index[name]
}

// Sort returns the nodes with every dependency before its dependents.
// Among nodes that are free at the same time, insertion order wins, so an
// already valid insertion order is returned unchanged.
func (g *Graph) Sort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	pending := make(map[string]int, len(g.nodes))
	for _, dependents := range g.edges {
		for _, d := range dependents {
			pending[d]++
		}
	}

	order := make([]string, 0, len(g.nodes))
	placed := make(map[string]bool, len(g.nodes))
	for len(order) < len(g.nodes) {
		next := ""
		for _, n := range g.nodes {
			if !placed[n] && pending[n] == 0 {
				next = n
				break
			}
		}
		if next == "" {
			var cycle []string
			for _, n := range g.nodes {
				if !placed[n] {
					cycle = append(cycle, n)
				}
			}
			return nil, &CycleError{Cycle: cycle}
		}
		placed[next] = true
		order = append(order, next)
		for _, d := range g.edges[next] {
			pending[d]--
		}
	}
	return order, nil
}

// String renders the edges for debugging, one "dep -> dependent" per line.
func (g *Graph) String() string {
	var b strings.Builder
	for _, n := range g.nodes {
		for _, d := range g.edges[n] {
			fmt.Fprintf(&b, "%s -> %s\n", n, d)
		}
	}
	return b.String()
}
