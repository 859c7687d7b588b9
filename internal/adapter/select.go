package adapter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case and defaults to Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return Desc
	}
	return Asc
}

// Column is one projected output column.
type Column struct {
	// Table is the alias the column names are qualified with.
	Table     string
	Names     []string
	Alias     string
	Transform Transform
}

// Expr renders the column expression without its alias.
func (c Column) Expr() string {
	refs := make([]string, len(c.Names))
	for i, n := range c.Names {
		refs[i] = FieldRef(c.Table, n)
	}
	if c.Transform == nil {
		return Identity(refs...)
	}
	return c.Transform(refs...)
}

// Expression is a list of columns combined by a transform, used by GROUP BY
// and ORDER BY.
type Expression struct {
	Columns   []string
	Transform Transform
}

func (e Expression) render(table string) string {
	return Column{Table: table, Names: e.Columns, Transform: e.Transform}.Expr()
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Expression
	Direction Direction
	// Table, when set, qualifies the term instead of the statement alias.
	Table string
}

// Limit is a LIMIT/OFFSET pair. Count <= 0 means no row limit.
type Limit struct {
	Offset int
	Count  int
}

// SelectSpec describes one SELECT statement. Exactly one of Table and
// Subquery is set.
type SelectSpec struct {
	Table    string
	Subquery string
	Alias    string
	Columns  []Column
	Where    MultiFilter
	Joins    [][]JoinSpec
	GroupBy  []Expression
	OrderBy  []OrderBy
	Limit    *Limit
}

// SelectQuery renders spec with placeholders numbered from paramOffset+1.
// Clauses are emitted in the order JOIN, WHERE, GROUP BY, ORDER BY, LIMIT and
// the returned params follow that order.
func SelectQuery(spec SelectSpec, paramOffset int) (string, []any) {
	var b strings.Builder

	b.WriteString("SELECT ")
	b.WriteString(columnList(spec.Columns, spec.Alias))
	b.WriteString(" FROM ")
	if spec.Subquery != "" {
		b.WriteString("(")
		b.WriteString(spec.Subquery)
		b.WriteString(")")
	} else {
		b.WriteString(EscapeField(spec.Table))
	}
	b.WriteString(" AS ")
	b.WriteString(EscapeField(spec.Alias))

	joinSQL, params := JoinClause(spec.Alias, spec.Joins, paramOffset)
	b.WriteString(joinSQL)

	whereSQL, whereParams := WhereClause(spec.Alias, spec.Where, paramOffset+len(params))
	b.WriteString(whereSQL)
	params = append(params, whereParams...)

	b.WriteString(GroupByClause(spec.Alias, spec.GroupBy))
	b.WriteString(OrderByClause(spec.Alias, spec.OrderBy))
	b.WriteString(LimitClause(spec.Limit))

	return b.String(), params
}

func columnList(columns []Column, table string) string {
	if len(columns) == 0 {
		return EscapeField(table) + ".*"
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		if c.Table == "" {
			c.Table = table
		}
		parts[i] = c.Expr() + " AS " + EscapeField(c.Alias)
	}
	return strings.Join(parts, ", ")
}

// GroupByClause renders " GROUP BY ..." or "".
func GroupByClause(table string, groupBy []Expression) string {
	if len(groupBy) == 0 {
		return ""
	}
	parts := make([]string, len(groupBy))
	for i, g := range groupBy {
		parts[i] = g.render(table)
	}
	return " GROUP BY " + strings.Join(parts, ", ")
}

// OrderByClause renders " ORDER BY ..." or "".
func OrderByClause(table string, orderBy []OrderBy) string {
	if len(orderBy) == 0 {
		return ""
	}
	parts := make([]string, len(orderBy))
	for i, o := range orderBy {
		dir := o.Direction
		if dir == "" {
			dir = Asc
		}
		alias := table
		if o.Table != "" {
			alias = o.Table
		}
		parts[i] = o.render(alias) + " " + string(dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// LimitClause renders " LIMIT n OFFSET m"; a nil limit renders "".
func LimitClause(limit *Limit) string {
	if limit == nil {
		return ""
	}
	var s string
	if limit.Count > 0 {
		s = " LIMIT " + strconv.Itoa(limit.Count)
	}
	if limit.Offset > 0 {
		s += " OFFSET " + strconv.Itoa(limit.Offset)
	}
	return s
}

// JoinClause renders LEFT JOINs for every join chain. A join alias already
// emitted is skipped. Join filters are folded into the ON condition so that
// unmatched rows survive the outer join. A paged hop becomes a LATERAL
// subquery so its ORDER BY and LIMIT apply per row of the previous hop.
func JoinClause(table string, joins [][]JoinSpec, paramOffset int) (string, []any) {
	var b strings.Builder
	var params []any
	emitted := make(map[string]bool)

	for _, chain := range joins {
		for _, j := range chain {
			if emitted[j.JoinAlias] {
				continue
			}
			emitted[j.JoinAlias] = true

			cond, condParams := joinCondition(table, j, paramOffset+len(params))
			params = append(params, condParams...)

			if !j.Paged() {
				b.WriteString(" LEFT JOIN ")
				b.WriteString(EscapeField(j.JoinTable))
				b.WriteString(" AS ")
				b.WriteString(EscapeField(j.JoinAlias))
				b.WriteString(" ON (")
				b.WriteString(cond)
				b.WriteString(")")
				continue
			}

			b.WriteString(" LEFT JOIN LATERAL (SELECT * FROM ")
			b.WriteString(EscapeField(j.JoinTable))
			b.WriteString(" AS ")
			b.WriteString(EscapeField(j.JoinAlias))
			b.WriteString(" WHERE ")
			b.WriteString(cond)
			b.WriteString(OrderByClause(j.JoinAlias, j.OrderBy))
			b.WriteString(LimitClause(j.Limit))
			b.WriteString(") AS ")
			b.WriteString(EscapeField(j.JoinAlias))
			b.WriteString(" ON TRUE")
		}
	}
	return b.String(), params
}

// joinCondition renders the key equality of a hop and its filter.
func joinCondition(table string, j JoinSpec, paramOffset int) (string, []any) {
	cond := FieldRef(j.JoinAlias, j.JoinColumn) + " = " + FieldRef(prevAlias(j, table), j.PrevColumn)
	filterSQL, params := OrClause(j.JoinAlias, j.MultiFilter, paramOffset)
	if filterSQL == "" {
		return cond, nil
	}
	return cond + " AND (" + filterSQL + ")", params
}

// SortedJoins returns the join chains of a joins map ordered by join name so
// that generated SQL is deterministic.
func SortedJoins(joins map[string][]JoinSpec) [][]JoinSpec {
	names := make([]string, 0, len(joins))
	for name := range joins {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([][]JoinSpec, len(names))
	for i, name := range names {
		out[i] = joins[name]
	}
	return out
}

// CountQuery wraps inner and returns its row count as __total__.
func CountQuery(inner, alias string) string {
	return fmt.Sprintf("SELECT COUNT(*) AS %s FROM (%s) AS %s",
		EscapeField(TotalColumn), inner, EscapeField(alias))
}

// TotalColumn is the column CountQuery reports the row count in.
const TotalColumn = "__total__"
