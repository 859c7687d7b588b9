package dql

import (
	"sort"
	"strings"

	"github.com/hurou927/pg-composer/internal/graph"
	"github.com/hurou927/pg-composer/internal/qerrors"
)

// Structure mirrors a field tree. Every field maps to its children; a child
// without children of its own is its bare name.
type Structure map[string][]any

// Query is a flattened field tree.
type Query struct {
	// Identifier is the name of the root field.
	Identifier string
	Structure  Structure
	// Joins maps the path of every kept field, root included, to its
	// properties. Paths are field names joined by "__".
	Joins map[string]map[string]any
}

// FormatTree flattens a parsed query with exactly one root field. Fields
// more than maxDepth levels below the root are pruned; maxDepth <= 0 keeps
// every level.
func FormatTree(fields []*Field, maxDepth int) (*Query, error) {
	if len(fields) != 1 {
		return nil, qerrors.Validationf("dql.FormatTree", "expected exactly one root field, got %d", len(fields))
	}
	root := fields[0]
	q := &Query{Identifier: root.Name, Joins: make(map[string]map[string]any)}
	q.Structure = Structure{root.Name: q.walk(root, root.Name, 0, maxDepth)}
	return q, nil
}

func (q *Query) walk(f *Field, path string, depth, maxDepth int) []any {
	q.Joins[path] = f.Comparisons()
	children := make([]any, 0, len(f.Children))
	if maxDepth > 0 && depth >= maxDepth {
		return children
	}
	for _, c := range f.Children {
		grand := q.walk(c, path+graph.Delimiter+c.Name, depth+1, maxDepth)
		if len(grand) == 0 {
			children = append(children, c.Name)
		} else {
			children = append(children, Structure{c.Name: grand})
		}
	}
	return children
}

// JoinPaths returns the relationship paths below the root with the root
// segment stripped, parents before their children.
func (q *Query) JoinPaths() []string {
	prefix := q.Identifier + graph.Delimiter
	var out []string
	for path := range q.Joins {
		if strings.HasPrefix(path, prefix) {
			out = append(out, strings.TrimPrefix(path, prefix))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di := strings.Count(out[i], graph.Delimiter)
		dj := strings.Count(out[j], graph.Delimiter)
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}

// Properties returns the properties of the field at a path relative to the
// root; "" is the root itself.
func (q *Query) Properties(path string) map[string]any {
	if path == "" {
		return q.Joins[q.Identifier]
	}
	return q.Joins[q.Identifier+graph.Delimiter+path]
}
