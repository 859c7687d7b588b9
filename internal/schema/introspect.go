package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/hurou927/pg-composer/internal/adapter"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Introspect queries PostgreSQL catalogs and returns all tables with columns, PKs, and FKs.
// Column types are mapped onto the logical type registry.
func Introspect(ctx context.Context, q Querier, schemas []string) (map[string]*Table, error) {
	tables, err := queryTablesAndColumns(ctx, q, schemas)
	if err != nil {
		return nil, fmt.Errorf("querying tables and columns: %w", err)
	}

	var pks []pkEntry
	var fks []ForeignKey
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if pks, err = queryPrimaryKeys(gctx, q, schemas); err != nil {
			return fmt.Errorf("querying primary keys: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if fks, err = queryForeignKeys(gctx, q, schemas); err != nil {
			return fmt.Errorf("querying foreign keys: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, pk := range pks {
		tbl, ok := tables[pk.table]
		if !ok {
			continue
		}
		if tbl.PrimaryKey == nil {
			tbl.PrimaryKey = &PrimaryKey{}
		}
		tbl.PrimaryKey.Columns = append(tbl.PrimaryKey.Columns, pk.column)
		for i := range tbl.Columns {
			if tbl.Columns[i].Name == pk.column {
				tbl.Columns[i].Properties.PrimaryKey = true
			}
		}
	}

	for _, fk := range fks {
		if tbl, ok := tables[fk.ChildSchema+"."+fk.ChildTable]; ok {
			tbl.ForeignKeys = append(tbl.ForeignKeys, fk)
		}
	}

	return tables, nil
}

// LogicalType maps a PostgreSQL type name onto the logical type registry.
// Types without a counterpart map to Text.
func LogicalType(dataType string) adapter.TypeName {
	switch dataType {
	case "int2", "int4", "int8", "oid":
		return adapter.Int
	case "numeric", "money":
		return adapter.Currency
	case "float4", "float8":
		return adapter.Float
	case "varchar", "bpchar", "name", "uuid":
		return adapter.String
	case "timestamp", "timestamptz", "date":
		return adapter.Datetime
	case "bool":
		return adapter.Boolean
	case "json", "jsonb":
		return adapter.JSON
	default:
		return adapter.Text
	}
}

func queryTablesAndColumns(ctx context.Context, q Querier, schemas []string) (map[string]*Table, error) {
	query := `
		SELECT
			n.nspname AS schema_name,
			c.relname AS table_name,
			a.attname AS column_name,
			t.typname AS data_type,
			NOT a.attnotnull AS is_nullable,
			a.attnum AS ordinal_position,
			t.typcategory = 'A' AS is_array,
			COALESCE(pg_get_serial_sequence(quote_ident(n.nspname) || '.' || quote_ident(c.relname), a.attname) IS NOT NULL, false) AS is_serial
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid
		JOIN pg_type t ON t.oid = a.atttypid
		WHERE c.relkind = 'r'
			AND a.attnum > 0
			AND NOT a.attisdropped
			AND n.nspname = ANY($1)
		ORDER BY n.nspname, c.relname, a.attnum
	`

	rows, err := q.Query(ctx, query, schemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make(map[string]*Table)
	for rows.Next() {
		var schemaName, tableName, colName, dataType string
		var nullable, array, serial bool
		var ordPos int
		if err := rows.Scan(&schemaName, &tableName, &colName, &dataType, &nullable, &ordPos, &array, &serial); err != nil {
			return nil, err
		}

		key := schemaName + "." + tableName
		tbl, ok := tables[key]
		if !ok {
			tbl = NewTable(tableName)
			tbl.Schema = schemaName
			tables[key] = tbl
		}

		// array types are named after their element type with a leading underscore
		if array && len(dataType) > 1 && dataType[0] == '_' {
			dataType = dataType[1:]
		}
		typ := LogicalType(dataType)
		if serial {
			typ = adapter.Serial
		}
		tbl.AddColumn(Column{
			Name:     colName,
			DataType: dataType,
			Type:     typ,
			Properties: adapter.Properties{
				Nullable:      nullable,
				Array:         array,
				AutoIncrement: serial,
			},
			OrdPos: ordPos,
		})
	}

	return tables, rows.Err()
}

type pkEntry struct {
	table  string // schema.table
	column string
}

func queryPrimaryKeys(ctx context.Context, q Querier, schemas []string) ([]pkEntry, error) {
	query := `
		SELECT
			n.nspname AS schema_name,
			c.relname AS table_name,
			a.attname AS column_name,
			u.ord AS key_position
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = u.attnum
		WHERE con.contype = 'p'
			AND n.nspname = ANY($1)
		ORDER BY n.nspname, c.relname, u.ord
	`

	rows, err := q.Query(ctx, query, schemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pkEntry
	for rows.Next() {
		var schemaName, tableName, colName string
		var keyPos int
		if err := rows.Scan(&schemaName, &tableName, &colName, &keyPos); err != nil {
			return nil, err
		}
		out = append(out, pkEntry{table: schemaName + "." + tableName, column: colName})
	}

	return out, rows.Err()
}

func queryForeignKeys(ctx context.Context, q Querier, schemas []string) ([]ForeignKey, error) {
	query := `
		SELECT
			con.conname AS fk_name,
			cn.nspname AS child_schema,
			cc.relname AS child_table,
			ca.attname AS child_column,
			pn.nspname AS parent_schema,
			pc.relname AS parent_table,
			pa.attname AS parent_column,
			u.ord AS key_position
		FROM pg_constraint con
		JOIN pg_class cc ON cc.oid = con.conrelid
		JOIN pg_namespace cn ON cn.oid = cc.relnamespace
		JOIN pg_class pc ON pc.oid = con.confrelid
		JOIN pg_namespace pn ON pn.oid = pc.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS u(child_attnum, parent_attnum, ord)
		JOIN pg_attribute ca ON ca.attrelid = cc.oid AND ca.attnum = u.child_attnum
		JOIN pg_attribute pa ON pa.attrelid = pc.oid AND pa.attnum = u.parent_attnum
		WHERE con.contype = 'f'
			AND cn.nspname = ANY($1)
		ORDER BY con.conname, u.ord
	`

	rows, err := q.Query(ctx, query, schemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Collect FK columns grouped by constraint name
	type fkEntry struct {
		name         string
		childSchema  string
		childTable   string
		childCol     string
		parentSchema string
		parentTable  string
		parentCol    string
	}

	fksByName := make(map[string][]fkEntry)
	var fkOrder []string

	for rows.Next() {
		var e fkEntry
		var keyPos int
		if err := rows.Scan(&e.name, &e.childSchema, &e.childTable, &e.childCol,
			&e.parentSchema, &e.parentTable, &e.parentCol, &keyPos); err != nil {
			return nil, err
		}
		if _, exists := fksByName[e.name]; !exists {
			fkOrder = append(fkOrder, e.name)
		}
		fksByName[e.name] = append(fksByName[e.name], e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]ForeignKey, 0, len(fkOrder))
	for _, name := range fkOrder {
		entries := fksByName[name]
		first := entries[0]
		fk := ForeignKey{
			Name:         name,
			ChildSchema:  first.childSchema,
			ChildTable:   first.childTable,
			ParentSchema: first.parentSchema,
			ParentTable:  first.parentTable,
		}
		for _, e := range entries {
			fk.ChildColumns = append(fk.ChildColumns, e.childCol)
			fk.ParentColumns = append(fk.ParentColumns, e.parentCol)
		}
		fk.IsSelfRef = (fk.ChildSchema == fk.ParentSchema && fk.ChildTable == fk.ParentTable)
		fks = append(fks, fk)
	}

	return fks, nil
}
