package adapter

import (
	"fmt"
	"strings"
)

// ColumnDef declares a column for DDL generation.
type ColumnDef struct {
	Name       string
	Type       TypeName
	Properties Properties
}

// ColumnDefinition renders one column of a CREATE TABLE or ADD COLUMN.
func ColumnDefinition(c ColumnDef) (string, error) {
	t, ok := LookupType(c.Type)
	if !ok {
		return "", fmt.Errorf("column %s: unknown type %q", c.Name, c.Type)
	}
	p := c.Properties

	dbType := t.DBName
	if p.Length > 0 && (c.Type == String) {
		dbType = fmt.Sprintf("%s(%d)", dbType, p.Length)
	}
	if p.Array {
		dbType += "[]"
	}

	parts := []string{EscapeField(c.Name), dbType}
	if p.PrimaryKey || !p.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if p.Default != nil {
		parts = append(parts, "DEFAULT "+EscapeLiteral(p.Default))
	}
	return strings.Join(parts, " "), nil
}

// CreateTableQuery renders CREATE TABLE with primary key and unique
// constraints.
func CreateTableQuery(table string, columns []ColumnDef) (string, error) {
	var defs, pk []string
	var constraints []string
	for _, c := range columns {
		def, err := ColumnDefinition(c)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", table, err)
		}
		defs = append(defs, def)
		if c.Properties.PrimaryKey {
			pk = append(pk, EscapeField(c.Name))
		} else if c.Properties.Unique {
			constraints = append(constraints, fmt.Sprintf("CONSTRAINT %s UNIQUE(%s)",
				EscapeField("unique_"+table+"_"+c.Name), EscapeField(c.Name)))
		}
	}
	if len(pk) > 0 {
		constraints = append([]string{fmt.Sprintf("CONSTRAINT %s PRIMARY KEY(%s)",
			EscapeField("pk_"+table), strings.Join(pk, ", "))}, constraints...)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)",
		EscapeField(table), strings.Join(append(defs, constraints...), ", ")), nil
}

// DropTableQuery renders DROP TABLE IF EXISTS.
func DropTableQuery(table string) string {
	return "DROP TABLE IF EXISTS " + EscapeField(table)
}

// AddColumnQuery renders ALTER TABLE ... ADD COLUMN.
func AddColumnQuery(table string, c ColumnDef) (string, error) {
	def, err := ColumnDefinition(c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", EscapeField(table), def), nil
}

// DropColumnQuery renders ALTER TABLE ... DROP COLUMN.
func DropColumnQuery(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", EscapeField(table), EscapeField(column))
}

// IndexName is the conventional index name for a column.
func IndexName(table, column string) string {
	return "index_" + table + "_" + column
}

// CreateIndexQuery renders CREATE INDEX using the given method ("btree" when
// empty).
func CreateIndexQuery(table, column, method string) string {
	if method == "" {
		method = "btree"
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s USING %s (%s)",
		EscapeField(IndexName(table, column)), EscapeField(table), method, EscapeField(column))
}

// DropIndexQuery renders DROP INDEX IF EXISTS.
func DropIndexQuery(table, column string) string {
	return "DROP INDEX IF EXISTS " + EscapeField(IndexName(table, column))
}
