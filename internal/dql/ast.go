// Package dql parses the domain query language: a tree of record type and
// relationship names with optional filter properties, e.g.
//
//	posts(status: "open") { comments(approved: true) { author } }
//
// and applies it to a composer chain.
package dql

// Field is one named node of the tree. The root field names a record type;
// nested fields name relationships of their parent.
type Field struct {
	Name       string
	Properties []Property
	Children   []*Field
	// Offset is the position of the name in the input.
	Offset int
}

// Property is one name: value pair of a field's filter list.
type Property struct {
	Name  string
	Value any
}

// Comparisons returns the properties as a map. Later duplicates win.
func (f *Field) Comparisons() map[string]any {
	out := make(map[string]any, len(f.Properties))
	for _, p := range f.Properties {
		out[p.Name] = p.Value
	}
	return out
}
