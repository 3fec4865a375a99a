package batch

import (
	"path/filepath"

	"reshape/internal/operation"
)

// Ordering selects how a batch is reordered before sequential execution.
type Ordering string

const (
	// OrderGraph builds an explicit dependency graph between operations and
	// runs a stable topological order over it.
	OrderGraph Ordering = "graph"
	// OrderConservative groups removes, then renames, then the rest, unless
	// any two adjacent operations depend on each other, in which case the
	// original order is kept.
	OrderConservative Ordering = "conservative"
)

// Valid reports whether o names a known ordering.
func (o Ordering) Valid() bool {
	return o == OrderGraph || o == OrderConservative
}

func priority(t operation.Type) int {
	switch t {
	case operation.TypeRemove:
		return 0
	case operation.TypeRename:
		return 1
	}
	return 2
}

// files returns the files an operation is known to touch before it runs.
func files(op operation.Operation) []string {
	out := []string{filepath.Clean(op.Selector.FilePath)}
	if op.Type == operation.TypeMove && op.TargetFilePath != "" {
		out = append(out, filepath.Clean(op.TargetFilePath))
	}
	return out
}

// dependent reports whether two operations must keep their relative order.
func dependent(a, b operation.Operation) bool {
	if a.Selector.Name == b.Selector.Name {
		return true
	}
	for _, fa := range files(a) {
		for _, fb := range files(b) {
			if fa == fb {
				return true
			}
		}
	}
	return false
}

// Graph records, for each operation, the earlier operations it depends on.
type Graph struct {
	Deps [][]int
}

// BuildGraph links every operation to each earlier operation it shares a
// file or a selector name with.
func BuildGraph(ops []operation.Operation) *Graph {
	g := &Graph{Deps: make([][]int, len(ops))}
	for j := range ops {
		for i := 0; i < j; i++ {
			if dependent(ops[i], ops[j]) {
				g.Deps[j] = append(g.Deps[j], i)
			}
		}
	}
	return g
}

// OptimizeOrder returns the execution order of ops as indices into ops.
func OptimizeOrder(ops []operation.Operation, mode Ordering) []int {
	if mode == OrderConservative {
		return conservativeOrder(ops)
	}
	return graphOrder(ops)
}

// graphOrder is Kahn's algorithm; among ready operations the lowest
// priority wins, ties broken by original position.
func graphOrder(ops []operation.Operation) []int {
	g := BuildGraph(ops)
	pending := make([]int, len(ops))
	dependents := make([][]int, len(ops))
	for j, deps := range g.Deps {
		pending[j] = len(deps)
		for _, i := range deps {
			dependents[i] = append(dependents[i], j)
		}
	}

	done := make([]bool, len(ops))
	order := make([]int, 0, len(ops))
	for len(order) < len(ops) {
		next := -1
		for j := range ops {
			if done[j] || pending[j] > 0 {
				continue
			}
			if next < 0 || priority(ops[j].Type) < priority(ops[next].Type) {
				next = j
			}
		}
		done[next] = true
		order = append(order, next)
		for _, j := range dependents[next] {
			pending[j]--
		}
	}
	return order
}

func conservativeOrder(ops []operation.Operation) []int {
	order := make([]int, len(ops))
	for i := range ops {
		order[i] = i
	}
	for i := 1; i < len(ops); i++ {
		if adjacentDependency(ops[i-1], ops[i]) {
			return order
		}
	}
	var grouped []int
	for p := 0; p <= 2; p++ {
		for i, op := range ops {
			if priority(op.Type) == p {
				grouped = append(grouped, i)
			}
		}
	}
	return grouped
}

// adjacentDependency is the pairwise check used by conservative ordering:
// a move whose target the next rename touches, or a shared selector name.
func adjacentDependency(a, b operation.Operation) bool {
	if a.Selector.Name == b.Selector.Name {
		return true
	}
	return a.Type == operation.TypeMove && b.Type == operation.TypeRename &&
		filepath.Clean(a.TargetFilePath) == filepath.Clean(b.Selector.FilePath)
}

// CanParallelize reports whether ops may run concurrently: no moves, and no
// two operations sharing a selector file or a selector name.
func CanParallelize(ops []operation.Operation) bool {
	paths := make(map[string]bool, len(ops))
	names := make(map[string]bool, len(ops))
	for _, op := range ops {
		if op.Type == operation.TypeMove {
			return false
		}
		p := filepath.Clean(op.Selector.FilePath)
		if paths[p] || names[op.Selector.Name] {
			return false
		}
		paths[p] = true
		names[op.Selector.Name] = true
	}
	return true
}
