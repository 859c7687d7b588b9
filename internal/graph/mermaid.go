package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteMermaid writes the graph in Mermaid format to w.
// Each connected component is a subgraph; edges point from parent to child
// and are labelled with the relationship name and its FK column.
func WriteMermaid(w io.Writer, g *Graph) error {
	components := FindComponents(g)

	fmt.Fprintln(w, "graph TD")

	for i, comp := range components {
		fmt.Fprintf(w, "    subgraph component_%d\n", i+1)

		inComp := make(map[int]bool, len(comp.Nodes))
		for _, n := range comp.Nodes {
			inComp[n.id] = true
		}

		edgesWritten := make(map[string]bool)
		for _, e := range g.edges {
			if !inComp[e.parent] {
				continue
			}
			parent, child := g.nodes[e.parent], g.nodes[e.child]
			label := fmt.Sprintf("%s via %s", e.Name, e.Via)
			edgeKey := fmt.Sprintf("%s-->%s:%s", mermaidID(parent), mermaidID(child), label)
			if edgesWritten[edgeKey] {
				continue
			}
			edgesWritten[edgeKey] = true
			arrow := "-->"
			if !e.Multiple {
				arrow = "---"
			}
			fmt.Fprintf(w, "        %s %s|%s| %s\n", mermaidID(parent), arrow, label, mermaidID(child))
		}

		// Write standalone nodes
		for _, n := range comp.Nodes {
			if len(n.edges) == 0 {
				fmt.Fprintf(w, "        %s\n", mermaidID(n))
			}
		}

		fmt.Fprintln(w, "    end")
		if i < len(components)-1 {
			fmt.Fprintln(w)
		}
	}

	return nil
}

// WriteText writes a text summary of the graph to w.
func WriteText(w io.Writer, g *Graph) error {
	components := FindComponents(g)

	fmt.Fprintf(w, "Tables: %d\n", len(g.nodes))
	fmt.Fprintf(w, "Relationships: %d\n", len(g.edges))
	fmt.Fprintf(w, "Connected Components: %d\n\n", len(components))

	topoResult := TopoSortAll(g)
	if topoResult.HasCycle {
		fmt.Fprintf(w, "WARNING: Circular dependencies detected: %v\n\n", tableNames(topoResult.CycleNodes))
	}

	// Warn about tables without PKs
	var noPKTables []string
	for _, n := range g.nodes {
		if n.table.PrimaryKey == nil {
			noPKTables = append(noPKTables, n.table.TableName())
		}
	}
	if len(noPKTables) > 0 {
		sort.Strings(noPKTables)
		fmt.Fprintf(w, "WARNING: Tables without primary key: %v\n\n", noPKTables)
	}

	var selfRefTables []string
	for _, e := range g.edges {
		if e.parent == e.child {
			selfRefTables = append(selfRefTables, g.nodes[e.parent].table.TableName())
		}
	}
	if len(selfRefTables) > 0 {
		sort.Strings(selfRefTables)
		fmt.Fprintf(w, "Self-referencing tables: %v\n\n", selfRefTables)
	}

	roots := tableNames(g.Roots())
	sort.Strings(roots)
	fmt.Fprintf(w, "Root tables (no parents): %v\n\n", roots)

	for i, comp := range components {
		fmt.Fprintf(w, "=== Component %d (%d tables) ===\n", i+1, len(comp.Nodes))

		topoComp := TopoSort(g, comp.Nodes)
		if topoComp.HasCycle {
			fmt.Fprintf(w, "  Topological order (partial, has cycle):\n")
		} else {
			fmt.Fprintf(w, "  Topological order:\n")
		}
		for j, n := range topoComp.Order {
			tbl := n.table
			pkInfo := "no PK"
			if tbl.PrimaryKey != nil {
				pkInfo = fmt.Sprintf("PK: %s", strings.Join(tbl.PrimaryKey.Columns, ", "))
			}
			var names []string
			for _, e := range n.Edges() {
				if e.parent == n.id {
					names = append(names, e.Name)
				}
				if e.child == n.id {
					names = append(names, e.As)
				}
			}
			fmt.Fprintf(w, "    %d. %s (%d cols, %s, relationships: %s)\n",
				j+1, tbl.TableName(), len(tbl.Columns), pkInfo, strings.Join(names, ", "))
		}
		if topoComp.HasCycle {
			fmt.Fprintf(w, "  Cycle tables: %v\n", tableNames(topoComp.CycleNodes))
		}
		fmt.Fprintln(w)
	}

	return nil
}

// mermaidID converts a table name to a Mermaid-safe node ID.
func mermaidID(n *Node) string {
	return strings.ReplaceAll(n.table.FullName(), ".", "_")
}
