package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/hurou927/relload/internal/schema"
)

// WriteMermaid writes the graph in Mermaid format to w.
// Each connected component is a subgraph; edges point parent --> child.
func WriteMermaid(w io.Writer, g *Graph) error {
	components := FindComponents(g)

	if _, err := fmt.Fprintln(w, "graph TD"); err != nil {
		return err
	}

	for i, comp := range components {
		fmt.Fprintf(w, "    subgraph component_%d\n", i+1)

		for _, parent := range comp.Tables {
			for _, child := range g.Children[parent] {
				label := fkLabel(g, child, parent)
				if label == "" {
					fmt.Fprintf(w, "        %s --> %s\n", mermaidID(parent), mermaidID(child))
				} else {
					fmt.Fprintf(w, "        %s -->|%s| %s\n", mermaidID(parent), label, mermaidID(child))
				}
			}
		}

		// Write standalone nodes
		for _, t := range comp.Tables {
			if len(g.Children[t]) == 0 && len(g.Parents[t]) == 0 {
				fmt.Fprintf(w, "        %s\n", mermaidID(t))
			}
		}

		fmt.Fprintln(w, "    end")
		if i < len(components)-1 {
			fmt.Fprintln(w)
		}
	}

	return nil
}

// WriteText writes a text summary of the graph and its creation order to w.
func WriteText(w io.Writer, g *Graph) error {
	components := FindComponents(g)

	fmt.Fprintf(w, "Tables: %d\n", len(g.Children))
	fmt.Fprintf(w, "Dependencies: %d\n", g.EdgeCount())
	var total schema.ConstraintCounts
	for _, tbl := range g.Tables {
		total = total.Add(tbl.Constraints)
	}
	fmt.Fprintf(w, "Constraints: %s\n", total)
	fmt.Fprintf(w, "Connected Components: %d\n", len(components))
	for i, comp := range components {
		if comp.Order == nil {
			fmt.Fprintf(w, "  component_%d: %s (cycle)\n", i+1, strings.Join(comp.Tables, ", "))
			continue
		}
		fmt.Fprintf(w, "  component_%d: %s\n", i+1, strings.Join(comp.Order, " -> "))
	}
	fmt.Fprintln(w)

	topoResult := TopoSortAll(g)
	if topoResult.HasCycle {
		fmt.Fprintf(w, "WARNING: Circular dependencies detected: %v\n\n", topoResult.CycleTables)
	}

	var undefined []string
	for _, name := range g.Nodes() {
		if _, ok := g.Tables[name]; !ok {
			undefined = append(undefined, name)
		}
	}
	if len(undefined) > 0 {
		fmt.Fprintf(w, "WARNING: Referenced but not defined: %v\n\n", undefined)
	}

	fmt.Fprintf(w, "Root tables (no FK parents): %v\n\n", g.Roots())

	fmt.Fprintf(w, "Creation order:\n")
	for j, t := range topoResult.Order {
		tbl, ok := g.Tables[t]
		if !ok {
			fmt.Fprintf(w, "  %d. %s (undefined)\n", j+1, t)
			continue
		}
		keyInfo := "no PK"
		if len(tbl.PrimaryKey) > 0 {
			keyInfo = "PK: " + strings.Join(tbl.PrimaryKey, ", ")
		}
		if len(tbl.Unique) > 0 {
			keyInfo += "; unique: " + strings.Join(tbl.Unique, ", ")
		}
		fmt.Fprintf(w, "  %d. %s (%d cols, %s, parents: %v)\n",
			j+1, t, len(tbl.Columns), keyInfo, g.Parents[t])
		fmt.Fprintf(w, "     constraints: %s\n", tbl.Constraints)
	}
	_, err := fmt.Fprintln(w)
	return err
}

// fkLabel returns the child's FK column(s) referencing parent.
func fkLabel(g *Graph, child, parent string) string {
	tbl, ok := g.Tables[child]
	if !ok {
		return ""
	}
	var cols []string
	for _, fk := range tbl.ForeignKeys {
		if fk.ParentTable == parent {
			cols = append(cols, fk.Column)
		}
	}
	return strings.Join(cols, ", ")
}

// mermaidID converts a table name to a Mermaid-safe node ID.
func mermaidID(name string) string {
	return strings.NewReplacer(".", "_", " ", "_", "-", "_", `"`, "").Replace(name)
}
