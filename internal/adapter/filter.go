package adapter

import (
	"sort"
	"strings"
)

// JoinSpec holds what is needed to emit one JOIN hop.
type JoinSpec struct {
	// Name is the join path up to and including this hop, e.g. "posts__comments".
	Name       string
	JoinTable  string
	JoinColumn string
	// PrevTable is the alias of the previous hop. Empty means the alias of
	// the query the join is attached to.
	PrevTable  string
	PrevColumn string
	JoinAlias  string
	// PrimaryKey is the primary key column of JoinTable.
	PrimaryKey string
	// Multiple is true when this hop is one-to-many.
	Multiple bool
	// Columns are the columns of JoinTable projected by joined selects.
	Columns []string
	// MultiFilter restricts which joined rows may match.
	MultiFilter MultiFilter
	// OrderBy and Limit page the joined rows of each base row.
	OrderBy []OrderBy
	Limit   *Limit
}

// Paged reports whether the hop orders or limits its rows.
func (j JoinSpec) Paged() bool {
	return len(j.OrderBy) > 0 || j.Limit != nil
}

// Comparison is a fully resolved filter predicate.
type Comparison struct {
	// Table is the target table for joined comparisons.
	Table      string
	Column     string
	Comparator Comparator
	Value      any
	Joined     bool
	// Joins is the path from the filtered table to Table.
	Joins []JoinSpec
}

// groupKey identifies the joined row a comparison is evaluated against.
func (c Comparison) groupKey() string {
	if !c.Joined || len(c.Joins) == 0 {
		return ""
	}
	return c.Joins[len(c.Joins)-1].Name
}

// MultiFilter is an OR of AND-groups.
type MultiFilter [][]Comparison

// NewMultiFilter drops empty groups and orders each group so that plain
// comparisons come first and joined comparisons are adjacent per join path.
// The order of the result is the order parameters are bound in.
func NewMultiFilter(groups ...[]Comparison) MultiFilter {
	var mf MultiFilter
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		sorted := append([]Comparison(nil), g...)
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if a.Joined != b.Joined {
				return !a.Joined
			}
			return a.groupKey() < b.groupKey()
		})
		mf = append(mf, sorted)
	}
	return mf
}

// Params returns the bound values in emission order.
func (mf MultiFilter) Params() []any {
	var params []any
	for _, group := range mf {
		for _, c := range group {
			if c.Comparator.IgnoresValue() {
				continue
			}
			params = append(params, c.Value)
		}
	}
	return params
}

// Empty reports whether the filter has no comparisons.
func (mf MultiFilter) Empty() bool {
	for _, g := range mf {
		if len(g) > 0 {
			return false
		}
	}
	return true
}

// WhereClause renders " WHERE <or-clause>" for the filter, or "" when empty.
func WhereClause(table string, mf MultiFilter, paramOffset int) (string, []any) {
	sql, params := orClause(table, mf)
	if sql == "" {
		return "", nil
	}
	return bindPlaceholders(" WHERE "+sql, paramOffset), params
}

// OrClause renders the filter as ORed AND-groups.
func OrClause(table string, mf MultiFilter, paramOffset int) (string, []any) {
	sql, params := orClause(table, mf)
	return bindPlaceholders(sql, paramOffset), params
}

// AndClause renders a single AND-group.
func AndClause(table string, group []Comparison, paramOffset int) (string, []any) {
	sql, params := andClause(table, group)
	return bindPlaceholders(sql, paramOffset), params
}

func orClause(table string, mf MultiFilter) (string, []any) {
	var clauses []string
	var params []any
	for _, group := range mf {
		sql, p := andClause(table, group)
		if sql == "" {
			continue
		}
		clauses = append(clauses, "("+sql+")")
		params = append(params, p...)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return strings.Join(clauses, " OR "), params
}

// andClause emits plain comparisons first, then one EXISTS sub-clause per
// join path so that conditions on a joined row apply to the same row.
func andClause(table string, group []Comparison) (string, []any) {
	var clauses []string
	var params []any
	var joined [][]Comparison

	for _, c := range group {
		if c.Joined && len(c.Joins) > 0 {
			if n := len(joined); n > 0 && joined[n-1][0].groupKey() == c.groupKey() {
				joined[n-1] = append(joined[n-1], c)
			} else {
				joined = append(joined, []Comparison{c})
			}
			continue
		}
		clauses = append(clauses, c.Comparator.Render(FieldRef(table, c.Column), varToken))
		if !c.Comparator.IgnoresValue() {
			params = append(params, c.Value)
		}
	}

	for _, jc := range joined {
		sql, p := existsClause(table, jc)
		clauses = append(clauses, sql)
		params = append(params, p...)
	}

	return strings.Join(clauses, " AND "), params
}

func existsClause(table string, comparisons []Comparison) (string, []any) {
	joins := comparisons[0].Joins
	first := joins[0]
	last := joins[len(joins)-1]

	var b strings.Builder
	b.WriteString("EXISTS (SELECT 1 FROM ")
	b.WriteString(EscapeField(first.JoinTable))
	b.WriteString(" AS ")
	b.WriteString(EscapeField(first.JoinAlias))
	for _, j := range joins[1:] {
		b.WriteString(" INNER JOIN ")
		b.WriteString(EscapeField(j.JoinTable))
		b.WriteString(" AS ")
		b.WriteString(EscapeField(j.JoinAlias))
		b.WriteString(" ON ")
		b.WriteString(FieldRef(j.JoinAlias, j.JoinColumn))
		b.WriteString(" = ")
		b.WriteString(FieldRef(prevAlias(j, table), j.PrevColumn))
	}
	b.WriteString(" WHERE ")
	b.WriteString(FieldRef(first.JoinAlias, first.JoinColumn))
	b.WriteString(" = ")
	b.WriteString(FieldRef(prevAlias(first, table), first.PrevColumn))

	var params []any
	for _, c := range comparisons {
		b.WriteString(" AND ")
		b.WriteString(c.Comparator.Render(FieldRef(last.JoinAlias, c.Column), varToken))
		if !c.Comparator.IgnoresValue() {
			params = append(params, c.Value)
		}
	}
	b.WriteString(")")
	return b.String(), params
}

func prevAlias(j JoinSpec, table string) string {
	if j.PrevTable == "" {
		return table
	}
	return j.PrevTable
}
