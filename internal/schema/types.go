package schema

import (
	"github.com/hurou927/pg-composer/internal/adapter"
)

// DefaultPrimaryKey is assumed when a table declares no primary key.
const DefaultPrimaryKey = "id"

// Column represents a mapped column.
type Column struct {
	Name       string
	DataType   string // PostgreSQL type name (e.g. "int4", "text", "bool"), empty for declared models
	Type       adapter.TypeName
	Properties adapter.Properties
	Hidden     bool
	OrdPos     int // ordinal position (1-based)
}

// Def returns the column as a DDL declaration.
func (c Column) Def() adapter.ColumnDef {
	return adapter.ColumnDef{Name: c.Name, Type: c.Type, Properties: c.Properties}
}

// PrimaryKey represents a table's primary key.
type PrimaryKey struct {
	Columns []string
}

// ForeignKey represents a foreign key constraint.
type ForeignKey struct {
	Name          string
	ChildSchema   string
	ChildTable    string
	ChildColumns  []string
	ParentSchema  string
	ParentTable   string
	ParentColumns []string
	IsSelfRef     bool
}

// Table is a record type: a mapped table with its columns, PK and FKs.
// Tables are compared by identity; build each one once and share the
// pointer.
type Table struct {
	Schema      string
	Name        string
	Columns     []Column
	PrimaryKey  *PrimaryKey
	ForeignKeys []ForeignKey

	index map[string]int
}

// NewTable creates a table in the public schema.
func NewTable(name string, columns ...Column) *Table {
	t := &Table{Schema: "public", Name: name, index: make(map[string]int)}
	for _, c := range columns {
		t.AddColumn(c)
	}
	return t
}

// AddColumn appends a column. A column whose properties mark it as primary
// key is added to the table's primary key.
func (t *Table) AddColumn(c Column) {
	if c.OrdPos == 0 {
		c.OrdPos = len(t.Columns) + 1
	}
	t.Columns = append(t.Columns, c)
	if t.index != nil {
		t.index[c.Name] = len(t.Columns) - 1
	}
	if c.Properties.PrimaryKey {
		if t.PrimaryKey == nil {
			t.PrimaryKey = &PrimaryKey{}
		}
		t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, c.Name)
	}
}

// FullName returns schema-qualified table name.
func (t *Table) FullName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// TableName returns the unqualified table name.
func (t *Table) TableName() string {
	return t.Name
}

// ColumnNames returns all column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name. It only reads the table, so a fully
// declared table may be shared between goroutines.
func (t *Table) Column(name string) (Column, bool) {
	if len(t.index) == len(t.Columns) {
		if i, ok := t.index[name]; ok {
			return t.Columns[i], true
		}
		return Column{}, false
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether name is a column of the table.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// IsHidden reports whether the column must not be exposed to untrusted
// callers. Unknown columns are not hidden.
func (t *Table) IsHidden(name string) bool {
	c, ok := t.Column(name)
	return ok && c.Hidden
}

// PKColumnNames returns the primary key column names, or nil if no PK.
func (t *Table) PKColumnNames() []string {
	if t.PrimaryKey == nil {
		return nil
	}
	return t.PrimaryKey.Columns
}

// PrimaryKeyColumn returns the single column identifying a record.
func (t *Table) PrimaryKeyColumn() string {
	if t.PrimaryKey == nil || len(t.PrimaryKey.Columns) == 0 {
		return DefaultPrimaryKey
	}
	return t.PrimaryKey.Columns[0]
}

// Sanitize converts a value for binding against the named column.
func (t *Table) Sanitize(column string, v any) (any, error) {
	c, ok := t.Column(column)
	if !ok {
		return v, nil
	}
	return adapter.Sanitize(c.Type, v)
}

// ColumnDefs returns the DDL declarations of all columns.
func (t *Table) ColumnDefs() []adapter.ColumnDef {
	defs := make([]adapter.ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = c.Def()
	}
	return defs
}
