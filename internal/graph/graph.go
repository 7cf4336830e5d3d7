package graph

import (
	"fmt"
	"sort"

	"github.com/hurou927/relload/internal/schema"
)

// Graph is the directed FK dependency graph, with edges running parent → child.
type Graph struct {
	// Tables is the registry of declared tables by name.
	Tables map[string]*schema.TableSpec

	// Children maps parent name → sorted child names.
	// Every node has an entry, including parent-only tables that were never declared.
	Children map[string][]string

	// Parents maps child name → sorted parent names.
	Parents map[string][]string
}

// Build constructs the dependency graph and table registry from table facts.
// Every referenced parent becomes a node even if it has no facts of its own.
// Rebuilding from the same facts yields an identical graph.
func Build(specs []*schema.TableSpec) (*Graph, error) {
	g := &Graph{
		Tables:   make(map[string]*schema.TableSpec, len(specs)),
		Children: make(map[string][]string),
		Parents:  make(map[string][]string),
	}

	for _, spec := range specs {
		if _, dup := g.Tables[spec.Name]; dup {
			return nil, fmt.Errorf("table %q is defined more than once", spec.Name)
		}
		g.Tables[spec.Name] = spec
		g.ensureNode(spec.Name)
	}

	for _, spec := range specs {
		for _, parent := range spec.References {
			g.ensureNode(parent)
			if contains(g.Children[parent], spec.Name) {
				continue
			}
			g.Children[parent] = append(g.Children[parent], spec.Name)
			g.Parents[spec.Name] = append(g.Parents[spec.Name], parent)
		}
	}

	for name := range g.Children {
		sort.Strings(g.Children[name])
		sort.Strings(g.Parents[name])
	}
	return g, nil
}

func (g *Graph) ensureNode(name string) {
	if _, ok := g.Children[name]; !ok {
		g.Children[name] = nil
	}
}

// Nodes returns every node name in lexicographic order.
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.Children))
	for name := range g.Children {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)
	return nodes
}

// EdgeCount returns the number of parent → child edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, children := range g.Children {
		n += len(children)
	}
	return n
}

// Roots returns nodes with no parents, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for _, name := range g.Nodes() {
		if len(g.Parents[name]) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
