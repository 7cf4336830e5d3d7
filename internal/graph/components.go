package graph

import (
	"sort"
)

// Component is a group of tables linked by FK paths. Tables in different
// components never constrain each other's creation order.
type Component struct {
	Tables []string
	// Order is the creation order within the component, nil when it contains a cycle.
	Order []string
}

// FindComponents groups the graph's nodes into connected components,
// following edges in both directions. Tables within a component and the
// components themselves are sorted.
func FindComponents(g *Graph) []Component {
	seen := make(map[string]bool)
	var components []Component

	for _, name := range g.Nodes() {
		if seen[name] {
			continue
		}
		members := g.reachable(name, seen)
		sort.Strings(members)
		c := Component{Tables: members}
		if res := TopoSort(g, members); !res.HasCycle {
			c.Order = res.Order
		}
		components = append(components, c)
	}
	return components
}

func (g *Graph) reachable(start string, seen map[string]bool) []string {
	stack := []string{start}
	seen[start] = true
	var members []string

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		members = append(members, node)

		for _, next := range append(append([]string(nil), g.Children[node]...), g.Parents[node]...) {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return members
}
