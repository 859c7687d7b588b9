package config

import (
	"fmt"
	"strings"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/graph"
	"github.com/hurou927/pg-composer/internal/schema"
)

// Catalog builds the declared models. A model without a primary key gets a
// serial "id" column first.
func (c *Config) Catalog() (*schema.Catalog, error) {
	catalog := schema.NewCatalog()
	for _, m := range c.Models {
		t := schema.NewTable(m.Table)

		hasPK := false
		for _, col := range m.Columns {
			if col.PrimaryKey || col.typeName() == adapter.Serial {
				hasPK = true
			}
		}
		if !hasPK {
			t.AddColumn(schema.Column{Name: schema.DefaultPrimaryKey, Type: adapter.Serial, Properties: serialProperties()})
		}

		for _, col := range m.Columns {
			sc, err := col.column()
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", m.Table, err)
			}
			t.AddColumn(sc)
		}
		catalog.Add(t)
	}
	return catalog, nil
}

func serialProperties() adapter.Properties {
	typ, _ := adapter.LookupType(adapter.Serial)
	return typ.Properties
}

// typeName is the declared type, lower-cased. An undeclared type is a string.
func (cc ColumnConfig) typeName() adapter.TypeName {
	if cc.Type == "" {
		return adapter.String
	}
	return adapter.TypeName(strings.ToLower(cc.Type))
}

func (cc ColumnConfig) column() (schema.Column, error) {
	name := cc.typeName()
	typ, ok := adapter.LookupType(name)
	if !ok {
		return schema.Column{}, fmt.Errorf("column %s: unknown type %q", cc.Name, cc.Type)
	}

	props := typ.Properties
	if cc.Length > 0 {
		props.Length = cc.Length
	}
	if cc.Nullable != nil {
		props.Nullable = *cc.Nullable
	}
	if cc.Unique {
		props.Unique = true
	}
	if cc.PrimaryKey {
		props.PrimaryKey = true
		props.Nullable = false
	}
	if cc.AutoIncrement {
		props.AutoIncrement = true
	}
	if cc.Array {
		props.Array = true
	}
	if cc.Default != nil {
		props.Default = cc.Default
	}

	return schema.Column{Name: cc.Name, Type: name, Properties: props, Hidden: cc.Hidden}, nil
}

// Graph registers every model and relationship of catalog into a new graph.
func (c *Config) Graph(catalog *schema.Catalog) (*graph.Graph, error) {
	g := graph.New()
	for _, t := range catalog.Tables() {
		g.Of(t)
	}
	for i, r := range c.Relationships {
		parent, ok := catalog.Lookup(r.Parent)
		if !ok {
			return nil, fmt.Errorf("relationships[%d]: unknown parent %q", i, r.Parent)
		}
		child, ok := catalog.Lookup(r.Child)
		if !ok {
			return nil, fmt.Errorf("relationships[%d]: unknown child %q", i, r.Child)
		}
		g.Of(parent).JoinsTo(child, graph.EdgeOptions{
			Name:     r.Name,
			As:       r.As,
			Via:      r.Via,
			Multiple: r.Multiple,
		})
	}
	return g, nil
}
