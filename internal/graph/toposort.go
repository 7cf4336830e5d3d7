package graph

import (
	"container/heap"
	"sort"
)

// TopoResult holds the result of topological sorting.
type TopoResult struct {
	// Order is the topological order (parents before children).
	Order []string
	// HasCycle is true if the graph contains a cycle.
	HasCycle bool
	// CycleTables lists, sorted, the tables left unordered by a cycle.
	CycleTables []string
}

// TopoSort performs Kahn's algorithm over the given subset of nodes.
// When several nodes are ready at once the lexicographically smallest goes
// first, so identical input always yields the identical order.
func TopoSort(g *Graph, tables []string) TopoResult {
	tableSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		tableSet[t] = true
	}

	// In-degree = number of parent edges within the subset
	inDegree := make(map[string]int, len(tables))
	for _, t := range tables {
		inDegree[t] = 0
	}
	for _, t := range tables {
		for _, p := range g.Parents[t] {
			if tableSet[p] {
				inDegree[t]++
			}
		}
	}

	ready := &nameHeap{}
	for _, t := range tables {
		if inDegree[t] == 0 {
			heap.Push(ready, t)
		}
	}

	var order []string
	for ready.Len() > 0 {
		node := heap.Pop(ready).(string)
		order = append(order, node)

		for _, child := range g.Children[node] {
			if !tableSet[child] {
				continue
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				heap.Push(ready, child)
			}
		}
	}

	result := TopoResult{Order: order}

	if len(order) < len(tableSet) {
		result.HasCycle = true
		for t := range tableSet {
			if inDegree[t] > 0 {
				result.CycleTables = append(result.CycleTables, t)
			}
		}
		sort.Strings(result.CycleTables)
	}

	return result
}

// TopoSortAll performs topological sort across all nodes in the graph.
func TopoSortAll(g *Graph) TopoResult {
	return TopoSort(g, g.Nodes())
}

// CheckUniverse verifies that the graph's nodes are exactly the declared tables.
func CheckUniverse(g *Graph, declared []string) error {
	want := make(map[string]bool, len(declared))
	for _, t := range declared {
		want[t] = true
	}

	err := &ConfigurationError{}
	for t := range want {
		if _, ok := g.Children[t]; !ok {
			err.Missing = append(err.Missing, t)
		}
	}
	for t := range g.Children {
		if !want[t] {
			err.Extra = append(err.Extra, t)
		}
	}
	if len(err.Missing) == 0 && len(err.Extra) == 0 {
		return nil
	}
	sort.Strings(err.Missing)
	sort.Strings(err.Extra)
	return err
}

// Schedule returns the creation order for the declared table universe.
// It fails with *ConfigurationError when the universe does not match the
// graph and with *CycleError when some tables cannot be ordered; no partial
// order is returned in either case.
func Schedule(g *Graph, declared []string) ([]string, error) {
	if err := CheckUniverse(g, declared); err != nil {
		return nil, err
	}
	result := TopoSortAll(g)
	if result.HasCycle {
		return nil, &CycleError{Tables: result.CycleTables}
	}
	return result.Order, nil
}

// nameHeap is a min-heap of table names.
type nameHeap []string

func (h nameHeap) Len() int           { return len(h) }
func (h nameHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h nameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nameHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *nameHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
