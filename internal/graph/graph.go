// Package graph provides a small, generic, immutable directed multigraph
// together with the builders used across testsmell: a lazy cycle-safe
// explorer (Build) and a rule-driven tree folder (TreeBuilder).
//
// # Terminology
//
// A node's heads are its successors and its tails are its predecessors.
// Parallel edges are kept: if a node lists the same head twice, HeadsFor
// returns it twice and TailsFor on the head returns the node twice.
//
// # Lifecycle
//
// Graphs are only created by the builders in this package and are never
// modified afterwards, so a Graph can be shared freely between readers.
package graph

import (
	"errors"
	"fmt"
	"iter"
)

// Sentinel errors for graph queries.
var (
	// ErrUnknownNode is returned when a query names a node that is not a
	// vertex of the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrIndexOutOfRange is returned by HeadByIndex when the index is
	// outside the node's head list.
	ErrIndexOutOfRange = errors.New("head index out of range")

	// ErrMalformedTree is returned by TreeBuilder.Build when the grouping
	// rules do not converge to exactly one root.
	ErrMalformedTree = errors.New("malformed tree")
)

// Graph is an immutable directed multigraph with a distinguished root.
// Every vertex is reachable from the root.
type Graph[N comparable] struct {
	root  N
	heads map[N][]N
	tails map[N][]N
	order []N // discovery order
}

// newGraph freezes an adjacency map. order must list every key of heads
// exactly once.
func newGraph[N comparable](root N, heads map[N][]N, order []N) *Graph[N] {
	tails := make(map[N][]N, len(heads))
	for _, n := range order {
		tails[n] = nil
	}
	for _, n := range order {
		for _, h := range heads[n] {
			tails[h] = append(tails[h], n)
		}
	}
	return &Graph[N]{
		root:  root,
		heads: heads,
		tails: tails,
		order: order,
	}
}

// Root returns the distinguished root vertex.
func (g *Graph[N]) Root() N {
	return g.root
}

// Order returns the number of vertices, including vertices without heads.
func (g *Graph[N]) Order() int {
	return len(g.order)
}

// Contains reports whether n is a vertex of the graph.
func (g *Graph[N]) Contains(n N) bool {
	_, ok := g.heads[n]
	return ok
}

// Nodes returns all vertices in discovery order.
func (g *Graph[N]) Nodes() []N {
	out := make([]N, len(g.order))
	copy(out, g.order)
	return out
}

// HeadsFor returns the direct successors of n in discovery order,
// repeated once per parallel edge.
func (g *Graph[N]) HeadsFor(n N) ([]N, error) {
	heads, ok := g.heads[n]
	if !ok {
		return nil, fmt.Errorf("heads for %v: %w", n, ErrUnknownNode)
	}
	out := make([]N, len(heads))
	copy(out, heads)
	return out, nil
}

// HeadByIndex returns the i-th successor of n.
func (g *Graph[N]) HeadByIndex(n N, i int) (N, error) {
	var zero N
	heads, ok := g.heads[n]
	if !ok {
		return zero, fmt.Errorf("head %d of %v: %w", i, n, ErrUnknownNode)
	}
	if i < 0 || i >= len(heads) {
		return zero, fmt.Errorf("head %d of %v (out degree %d): %w",
			i, n, len(heads), ErrIndexOutOfRange)
	}
	return heads[i], nil
}

// OutDegreeOf returns the number of outgoing edges of n.
func (g *Graph[N]) OutDegreeOf(n N) (int, error) {
	heads, ok := g.heads[n]
	if !ok {
		return 0, fmt.Errorf("out degree of %v: %w", n, ErrUnknownNode)
	}
	return len(heads), nil
}

// TailsFor returns every vertex that lists n as a head, once per
// occurrence, ordered by the discovery order of the tail vertices.
func (g *Graph[N]) TailsFor(n N) ([]N, error) {
	tails, ok := g.tails[n]
	if !ok {
		return nil, fmt.Errorf("tails for %v: %w", n, ErrUnknownNode)
	}
	out := make([]N, len(tails))
	copy(out, tails)
	return out, nil
}

// Walk returns a depth-first preorder traversal starting at the root.
func (g *Graph[N]) Walk() iter.Seq[N] {
	return g.WalkFrom(g.root)
}

// WalkFrom returns a depth-first preorder traversal starting at start.
// Each vertex is yielded exactly once; heads are explored in the order
// HeadsFor returns them. The sequence is empty when start is not a
// vertex.
func (g *Graph[N]) WalkFrom(start N) iter.Seq[N] {
	return func(yield func(N) bool) {
		if !g.Contains(start) {
			return
		}
		visited := make(map[N]bool, len(g.order))
		stack := []N{start}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[n] {
				continue
			}
			visited[n] = true
			if !yield(n) {
				return
			}
			heads := g.heads[n]
			for i := len(heads) - 1; i >= 0; i-- {
				if !visited[heads[i]] {
					stack = append(stack, heads[i])
				}
			}
		}
	}
}

// maxVisitsPerPath bounds how often one vertex may occur in a single
// path returned by FindPaths. Two allows every cycle on the way to the
// target to be traversed once.
const maxVisitsPerPath = 2

// FindPaths enumerates the paths from start to end. A path stops at the
// first arrival at end, so FindPaths(n, n) yields exactly [n]. A vertex
// may occur at most twice within one path, which admits one extra lap
// around any cycle. Parallel edges produce distinct paths.
func (g *Graph[N]) FindPaths(start, end N) ([][]N, error) {
	if !g.Contains(start) {
		return nil, fmt.Errorf("paths from %v: %w", start, ErrUnknownNode)
	}
	if !g.Contains(end) {
		return nil, fmt.Errorf("paths to %v: %w", end, ErrUnknownNode)
	}

	var (
		paths  [][]N
		path   []N
		visits = make(map[N]int)
	)

	var visit func(n N)
	visit = func(n N) {
		if visits[n] >= maxVisitsPerPath {
			return
		}
		visits[n]++
		path = append(path, n)

		if n == end {
			found := make([]N, len(path))
			copy(found, path)
			paths = append(paths, found)
		} else {
			for _, h := range g.heads[n] {
				visit(h)
			}
		}

		path = path[:len(path)-1]
		visits[n]--
	}
	visit(start)

	return paths, nil
}
