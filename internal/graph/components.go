package graph

import "sort"

// Component represents a connected component of tables.
type Component struct {
	Nodes []*Node
}

// TableNames returns the component's table names.
func (c Component) TableNames() []string {
	names := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		names[i] = n.table.TableName()
	}
	return names
}

// FindComponents detects connected components using undirected BFS. Nodes
// inside a component and the components themselves are ordered by table
// name.
func FindComponents(g *Graph) []Component {
	visited := make(map[int]bool)
	var components []Component

	for _, n := range g.nodes {
		if visited[n.id] {
			continue
		}
		comp := bfs(g, n, visited)
		sort.Slice(comp, func(i, j int) bool {
			return comp[i].table.TableName() < comp[j].table.TableName()
		})
		components = append(components, Component{Nodes: comp})
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].Nodes[0].table.TableName() < components[j].Nodes[0].table.TableName()
	})
	return components
}

func bfs(g *Graph, start *Node, visited map[int]bool) []*Node {
	queue := []*Node{start}
	visited[start.id] = true
	var result []*Node

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, id := range node.edges {
			e := g.edges[id]
			for _, neighbor := range []int{e.parent, e.child} {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, g.nodes[neighbor])
				}
			}
		}
	}

	return result
}
