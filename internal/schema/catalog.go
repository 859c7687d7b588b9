package schema

import (
	"sort"

	"github.com/hurou927/pg-composer/internal/qerrors"
)

// Catalog is the set of record types known to the process, keyed by
// unqualified table name.
type Catalog struct {
	tables map[string]*Table
	order  []string
}

// NewCatalog creates a catalog holding the given tables.
func NewCatalog(tables ...*Table) *Catalog {
	c := &Catalog{tables: make(map[string]*Table)}
	for _, t := range tables {
		c.Add(t)
	}
	return c
}

// FromTables builds a catalog from introspected tables, ordered by full name.
func FromTables(tables map[string]*Table) *Catalog {
	keys := make([]string, 0, len(tables))
	for k := range tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	c := NewCatalog()
	for _, k := range keys {
		c.Add(tables[k])
	}
	return c
}

// Add registers t, replacing any table with the same name.
func (c *Catalog) Add(t *Table) {
	if _, ok := c.tables[t.Name]; !ok {
		c.order = append(c.order, t.Name)
	}
	c.tables[t.Name] = t
}

// Lookup returns the table with the given name.
func (c *Catalog) Lookup(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// MustLookup is Lookup returning a configuration error for unknown names.
func (c *Catalog) MustLookup(name string) (*Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, qerrors.Configurationf("catalog", "unknown table %q", name)
	}
	return t, nil
}

// Tables returns every table in registration order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, len(c.order))
	for i, name := range c.order {
		out[i] = c.tables[name]
	}
	return out
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	return len(c.order)
}
