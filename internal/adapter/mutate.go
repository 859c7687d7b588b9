package adapter

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// InsertQuery inserts one row and returns it.
func InsertQuery(table string, columns []string, values []any) (string, []any, error) {
	if len(columns) != len(values) {
		return "", nil, fmt.Errorf("insert into %s: %d columns, %d values", table, len(columns), len(values))
	}
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", EscapeField(table)), nil, nil
	}
	return psql.Insert(EscapeField(table)).
		Columns(EscapeFields(columns)...).
		Values(values...).
		Suffix("RETURNING *").
		ToSql()
}

// UpdateQuery updates the row whose primary key equals id and returns it.
func UpdateQuery(table, pk string, id any, columns []string, values []any) (string, []any, error) {
	if len(columns) != len(values) {
		return "", nil, fmt.Errorf("update %s: %d columns, %d values", table, len(columns), len(values))
	}
	b := psql.Update(EscapeField(table))
	for i, c := range columns {
		b = b.Set(EscapeField(c), values[i])
	}
	return b.Where(sq.Eq{EscapeField(pk): id}).Suffix("RETURNING *").ToSql()
}

// UpdateAllQuery updates every row whose primary key is returned by
// subquery and returns the primary keys of the updated rows. subquery must
// number its placeholders from len(values)+1.
func UpdateAllQuery(table, pk string, columns []string, values []any, subquery string, subParams []any) (string, []any, error) {
	if len(columns) != len(values) {
		return "", nil, fmt.Errorf("update %s: %d columns, %d values", table, len(columns), len(values))
	}
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("update %s: no columns to set", table)
	}
	b := psql.Update(EscapeField(table))
	for i, c := range columns {
		b = b.Set(EscapeField(c), values[i])
	}
	sql, args, err := b.
		Where(sq.Expr(fmt.Sprintf("%s IN (%s)", EscapeField(pk), subquery))).
		Suffix("RETURNING " + EscapeField(pk)).
		ToSql()
	if err != nil {
		return "", nil, err
	}
	return sql, append(args, subParams...), nil
}

// DeleteQuery deletes one row by primary key.
func DeleteQuery(table, pk string, id any) (string, []any, error) {
	return psql.Delete(EscapeField(table)).Where(sq.Eq{EscapeField(pk): id}).ToSql()
}

// DeleteAllQuery deletes rows of table whose column is one of values. When
// joins is non-empty the rows deleted are those of the final join table
// reachable from the matching rows of table.
func DeleteAllQuery(table, column string, values []any, joins []JoinSpec) (string, []any, error) {
	if len(joins) == 0 {
		return psql.Delete(EscapeField(table)).Where(sq.Eq{EscapeField(column): values}).ToSql()
	}

	const base = "d"
	last := joins[len(joins)-1]
	sub := sq.Select(FieldRef(last.JoinAlias, last.PrimaryKey)).
		From(EscapeField(table) + " AS " + EscapeField(base))
	for _, j := range joins {
		sub = sub.Join(fmt.Sprintf("%s AS %s ON %s = %s",
			EscapeField(j.JoinTable), EscapeField(j.JoinAlias),
			FieldRef(j.JoinAlias, j.JoinColumn), FieldRef(prevAlias(j, base), j.PrevColumn)))
	}
	subSQL, subArgs, err := sub.Where(sq.Eq{FieldRef(base, column): values}).ToSql()
	if err != nil {
		return "", nil, err
	}

	return psql.Delete(EscapeField(last.JoinTable)).
		Where(sq.Expr(fmt.Sprintf("%s IN (%s)", EscapeField(last.PrimaryKey), subSQL), subArgs...)).
		ToSql()
}
