package graph

import (
	"strings"

	"github.com/hurou927/pg-composer/internal/adapter"
)

// hop is one edge walked in a direction.
type hop struct {
	edge *Edge
	// down is true when walking parent to child.
	down bool
}

func (h hop) name() string {
	if h.down {
		return h.edge.Name
	}
	return h.edge.As
}

func (h hop) multiple() bool {
	return h.down && h.edge.Multiple
}

// Path is an alternating walk node, edge, node, ... from a base node to a
// target node. Paths are never mutated once built.
type Path struct {
	nodes []*Node
	hops  []hop
}

func newPath(base *Node) *Path {
	return &Path{nodes: []*Node{base}}
}

func (p *Path) extend(h hop) *Path {
	from := p.Target()
	var to *Node
	if h.down {
		to = from.g.nodes[h.edge.child]
	} else {
		to = from.g.nodes[h.edge.parent]
	}
	return &Path{
		nodes: append(append([]*Node(nil), p.nodes...), to),
		hops:  append(append([]hop(nil), p.hops...), h),
	}
}

// Nodes returns the nodes of the walk, base first.
func (p *Path) Nodes() []*Node {
	return append([]*Node(nil), p.nodes...)
}

// Edges returns the edges of the walk, base first.
func (p *Path) Edges() []*Edge {
	out := make([]*Edge, len(p.hops))
	for i, h := range p.hops {
		out[i] = h.edge
	}
	return out
}

// Len is the number of nodes plus edges, always odd.
func (p *Path) Len() int {
	return len(p.nodes) + len(p.hops)
}

// Base returns the node the walk starts from.
func (p *Path) Base() *Node {
	return p.nodes[0]
}

// Target returns the node the walk ends at.
func (p *Path) Target() *Node {
	return p.nodes[len(p.nodes)-1]
}

// Segments returns the direction-aware name of every hop.
func (p *Path) Segments() []string {
	out := make([]string, len(p.hops))
	for i, h := range p.hops {
		out[i] = h.name()
	}
	return out
}

// JoinName joins the hop names with the path delimiter.
func (p *Path) JoinName() string {
	return strings.Join(p.Segments(), Delimiter)
}

// Multiple reports whether any hop is one-to-many.
func (p *Path) Multiple() bool {
	for _, h := range p.hops {
		if h.multiple() {
			return true
		}
	}
	return false
}

// ImmediateMultiple reports whether the final hop is the only one-to-many
// hop.
func (p *Path) ImmediateMultiple() bool {
	n := len(p.hops)
	if n == 0 || !p.hops[n-1].multiple() {
		return false
	}
	for _, h := range p.hops[:n-1] {
		if h.multiple() {
			return false
		}
	}
	return true
}

// Joins returns the join specs needed to reach the target, base first. The
// alias of each hop is aliasPrefix + "$" + the join name up to that hop.
// The first hop joins against firstTable; an empty firstTable means the
// alias of the query the joins are attached to.
func (p *Path) Joins(aliasPrefix, firstTable string) []adapter.JoinSpec {
	specs := make([]adapter.JoinSpec, len(p.hops))
	segments := p.Segments()
	prev := firstTable

	for i, h := range p.hops {
		from, to := p.nodes[i].table, p.nodes[i+1].table
		name := strings.Join(segments[:i+1], Delimiter)
		alias := aliasPrefix + "$" + name

		spec := adapter.JoinSpec{
			Name:       name,
			JoinTable:  to.TableName(),
			PrevTable:  prev,
			JoinAlias:  alias,
			PrimaryKey: to.PrimaryKeyColumn(),
			Multiple:   h.multiple(),
			Columns:    to.ColumnNames(),
		}
		if h.down {
			spec.JoinColumn = h.edge.Via
			spec.PrevColumn = from.PrimaryKeyColumn()
		} else {
			spec.JoinColumn = to.PrimaryKeyColumn()
			spec.PrevColumn = h.edge.Via
		}
		specs[i] = spec
		prev = alias
	}
	return specs
}
