package graph

import "fmt"

// TopoResult holds the result of topological sorting.
type TopoResult struct {
	// Order is the topological order (parents before children).
	Order []*Node
	// HasCycle is true if the graph contains a cycle.
	HasCycle bool
	// CycleNodes lists nodes involved in cycles (if any).
	CycleNodes []*Node
}

// TableNames returns the table names of Order.
func (r TopoResult) TableNames() []string {
	return tableNames(r.Order)
}

// TopoSort performs Kahn's algorithm on the given nodes within the graph.
// Returns nodes in dependency order: parents first, then children.
// Self-referencing edges are ignored.
func TopoSort(g *Graph, nodes []*Node) TopoResult {
	inSet := make(map[int]bool, len(nodes))
	for _, n := range nodes {
		inSet[n.id] = true
	}

	// In-degree = number of parent edges within the subset
	inDegree := make(map[int]int, len(nodes))
	localChildren := make(map[int][]int)
	for _, e := range g.edges {
		if e.parent == e.child || !inSet[e.parent] || !inSet[e.child] {
			continue
		}
		localChildren[e.parent] = append(localChildren[e.parent], e.child)
		inDegree[e.child]++
	}

	// Initialize queue with zero in-degree nodes (roots)
	var queue []*Node
	for _, n := range nodes {
		if inDegree[n.id] == 0 {
			queue = append(queue, n)
		}
	}

	var order []*Node
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, child := range localChildren[node.id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, g.nodes[child])
			}
		}
	}

	result := TopoResult{Order: order}

	if len(order) < len(nodes) {
		result.HasCycle = true
		for _, n := range nodes {
			if inDegree[n.id] > 0 {
				result.CycleNodes = append(result.CycleNodes, n)
			}
		}
	}

	return result
}

// TopoSortAll performs topological sort across all nodes in the graph.
func TopoSortAll(g *Graph) TopoResult {
	return TopoSort(g, g.nodes)
}

// ValidateCycles checks for cycles and returns a descriptive error if found.
func ValidateCycles(result TopoResult) error {
	if !result.HasCycle {
		return nil
	}
	return fmt.Errorf("circular dependency detected among tables: %v", tableNames(result.CycleNodes))
}

func tableNames(nodes []*Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.table.TableName()
	}
	return names
}
