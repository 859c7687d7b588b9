package graph

import (
	"strings"
	"sync"

	"github.com/jinzhu/inflection"

	"github.com/hurou927/pg-composer/internal/schema"
)

// Delimiter separates path segments in a relationship name such as
// "posts__comments__author".
const Delimiter = "__"

// Graph is the registry of record types and declared relationships. Nodes
// and edges live in arenas and refer to each other by index. Declaration
// must complete before the graph is read concurrently.
type Graph struct {
	nodes   []*Node
	edges   []*Edge
	byTable map[*schema.Table]int

	// version is bumped whenever an edge is added so that cached paths are
	// recomputed.
	version int
}

// Node wraps one record type.
type Node struct {
	g     *Graph
	id    int
	table *schema.Table
	edges []int

	mu           sync.Mutex
	cache        map[string]*Path
	cacheVersion int
}

// Edge is a directed parent/child relationship.
type Edge struct {
	id     int
	parent int
	child  int

	// Name is how the relationship is named walking parent to child.
	Name string
	// As is how the relationship is named walking child to parent.
	As string
	// Via is the foreign key column on the child.
	Via string
	// Multiple is true when one parent has many children.
	Multiple bool
}

// EdgeOptions configures JoinsTo. Empty fields take defaults.
type EdgeOptions struct {
	Name     string
	As       string
	Via      string
	Multiple bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{byTable: make(map[*schema.Table]int)}
}

// Of returns the node for t, creating it on first reference.
func (g *Graph) Of(t *schema.Table) *Node {
	if id, ok := g.byTable[t]; ok {
		return g.nodes[id]
	}
	n := &Node{g: g, id: len(g.nodes), table: t}
	g.nodes = append(g.nodes, n)
	g.byTable[t] = n.id
	return n
}

// Lookup returns the node for t without creating it.
func (g *Graph) Lookup(t *schema.Table) (*Node, bool) {
	id, ok := g.byTable[t]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// Nodes returns every node in creation order.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// Edges returns every edge in declaration order.
func (g *Graph) Edges() []*Edge {
	return append([]*Edge(nil), g.edges...)
}

// Parent returns the parent node of e.
func (g *Graph) Parent(e *Edge) *Node { return g.nodes[e.parent] }

// Child returns the child node of e.
func (g *Graph) Child(e *Edge) *Node { return g.nodes[e.child] }

// Table returns the record type of the node.
func (n *Node) Table() *schema.Table { return n.table }

// Edges returns the edges the node participates in, as parent or child.
func (n *Node) Edges() []*Edge {
	out := make([]*Edge, len(n.edges))
	for i, id := range n.edges {
		out[i] = n.g.edges[id]
	}
	return out
}

// JoinsTo declares that n is the parent of child. An edge between the same
// pair with the same name is returned instead of being duplicated.
func (n *Node) JoinsTo(child *schema.Table, opts EdgeOptions) *Edge {
	c := n.g.Of(child)

	if opts.Name == "" {
		if opts.Multiple {
			opts.Name = inflection.Plural(child.TableName())
		} else {
			opts.Name = inflection.Singular(child.TableName())
		}
	}
	if opts.As == "" {
		opts.As = inflection.Singular(n.table.TableName())
	}
	if opts.Via == "" {
		opts.Via = opts.As + "_id"
	}

	for _, id := range n.edges {
		e := n.g.edges[id]
		if e.parent == n.id && e.child == c.id && e.Name == opts.Name {
			return e
		}
	}

	e := &Edge{
		id:       len(n.g.edges),
		parent:   n.id,
		child:    c.id,
		Name:     opts.Name,
		As:       opts.As,
		Via:      opts.Via,
		Multiple: opts.Multiple,
	}
	n.g.edges = append(n.g.edges, e)
	n.edges = append(n.edges, e.id)
	if c.id != n.id {
		c.edges = append(c.edges, e.id)
	}
	n.g.version++
	return e
}

// FindExplicit resolves a path of segment names from n. Each segment must
// name an edge of the current node: by Name when the node is the parent, by
// As when it is the child. It returns nil if any segment is unresolved.
func (n *Node) FindExplicit(path string) *Path {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cache == nil || n.cacheVersion != n.g.version {
		n.cache = make(map[string]*Path)
		n.cacheVersion = n.g.version
	}
	if p, ok := n.cache[path]; ok {
		return p
	}

	p := n.findExplicit(path)
	n.cache[path] = p
	return p
}

func (n *Node) findExplicit(path string) *Path {
	if path == "" {
		return nil
	}
	p := newPath(n)
	for _, segment := range strings.Split(path, Delimiter) {
		cur := p.Target()
		next, ok := cur.step(segment)
		if !ok {
			return nil
		}
		p = p.extend(next)
	}
	return p
}

// step finds the edge named segment incident to n. Parent-to-child matches
// take precedence.
func (n *Node) step(segment string) (hop, bool) {
	for _, id := range n.edges {
		e := n.g.edges[id]
		if e.parent == n.id && e.Name == segment {
			return hop{edge: e, down: true}, true
		}
	}
	for _, id := range n.edges {
		e := n.g.edges[id]
		if e.child == n.id && e.As == segment {
			return hop{edge: e, down: false}, true
		}
	}
	return hop{}, false
}

// Find searches breadth-first across all incident edges, in both
// directions, for the first edge named name and returns the path to it.
// Each edge is visited at most once.
func (n *Node) Find(name string) *Path {
	visited := make(map[int]bool)
	queue := []*Path{newPath(n)}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		cur := p.Target()

		for _, id := range cur.edges {
			if visited[id] {
				continue
			}
			visited[id] = true
			e := n.g.edges[id]

			for _, h := range cur.hops(e) {
				next := p.extend(h)
				if h.name() == name {
					return next
				}
				queue = append(queue, next)
			}
		}
	}
	return nil
}

// Cascade enumerates, breadth-first, every path reachable from n walking
// parent to child only. Deleting in reverse order removes children before
// their parents.
func (n *Node) Cascade() []*Path {
	visited := make(map[int]bool)
	queue := []*Path{newPath(n)}
	var out []*Path

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		cur := p.Target()

		for _, id := range cur.edges {
			e := n.g.edges[id]
			if visited[id] || e.parent != cur.id {
				continue
			}
			visited[id] = true
			next := p.extend(hop{edge: e, down: true})
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}

// hops lists the ways e can be walked from n. A self-referencing edge can be
// walked both ways.
func (n *Node) hops(e *Edge) []hop {
	var out []hop
	if e.parent == n.id {
		out = append(out, hop{edge: e, down: true})
	}
	if e.child == n.id {
		out = append(out, hop{edge: e, down: false})
	}
	return out
}

// FromForeignKeys declares one edge per single-column foreign key of the
// catalog's tables. The child->parent name is the FK column without its
// "_id" suffix. Composite keys and keys to tables outside the catalog are
// skipped.
func FromForeignKeys(g *Graph, catalog *schema.Catalog) {
	for _, child := range catalog.Tables() {
		for _, fk := range child.ForeignKeys {
			if len(fk.ChildColumns) != 1 {
				continue
			}
			parent, ok := catalog.Lookup(fk.ParentTable)
			if !ok {
				continue
			}

			via := fk.ChildColumns[0]
			as := strings.TrimSuffix(via, "_id")
			if as == via {
				as = inflection.Singular(parent.TableName())
			}
			name := inflection.Plural(child.TableName())
			if as != inflection.Singular(parent.TableName()) {
				name = as + "_" + name
			}

			g.Of(parent).JoinsTo(child, EdgeOptions{
				Name:     name,
				As:       as,
				Via:      via,
				Multiple: true,
			})
		}
	}
}

// Roots returns nodes that are not the child of any edge other than a
// self reference.
func (g *Graph) Roots() []*Node {
	var roots []*Node
	for _, n := range g.nodes {
		root := true
		for _, id := range n.edges {
			e := g.edges[id]
			if e.child == n.id && e.parent != n.id {
				root = false
				break
			}
		}
		if root {
			roots = append(roots, n)
		}
	}
	return roots
}
