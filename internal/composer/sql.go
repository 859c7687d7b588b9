package composer

import (
	"fmt"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/schema"
)

// stagePrefix and stage index form the alias of each nested stage.
const stagePrefix = "t"

// countAlias is the alias of the statement wrapped by a count query.
const countAlias = "c"

// idAlias is the alias of the statement an id subquery selects from.
const idAlias = "u"

// SQL returns the statement the chain runs on End.
func (c *Composer) SQL() (Statement, error) {
	if c.err != nil {
		return Statement{}, c.err
	}
	sql, params := c.plan().selectQuery(c.table, 0)
	return Statement{SQL: sql, Params: params}, nil
}

// CountSQL returns the statement the chain runs on Count. Unless honorLimit
// is set the last limit is left out.
func (c *Composer) CountSQL(honorLimit bool) (Statement, error) {
	if c.err != nil {
		return Statement{}, c.err
	}
	p := c.plan()
	if !honorLimit {
		p, _ = p.withoutLastLimit()
	}
	return p.countQuery(c.table), nil
}

func (p *Plan) countQuery(t *schema.Table) Statement {
	inner, params := p.stagesQuery(t, 0)
	return Statement{SQL: adapter.CountQuery(inner, countAlias), Params: params}
}

// stagesQuery renders the nested stages, numbering placeholders from
// paramOffset+1.
func (p *Plan) stagesQuery(t *schema.Table, paramOffset int) (string, []any) {
	columns := p.stageColumns(t)
	var sql string
	var params []any

	for i := range p.Stages {
		st := &p.Stages[i]
		spec := adapter.SelectSpec{
			Alias:   fmt.Sprintf("%s%d", stagePrefix, i),
			Columns: columns[i],
			Where:   st.Where,
			GroupBy: st.GroupBy,
			OrderBy: st.OrderBy,
			Limit:   st.Limit,
		}
		if i == 0 {
			spec.Table = t.TableName()
		} else {
			spec.Subquery = sql
		}

		var stageParams []any
		sql, stageParams = adapter.SelectQuery(spec, paramOffset+len(params))
		params = append(params, stageParams...)
	}
	return sql, params
}

// selectQuery renders the stages and, when the plan joins, an outer query
// attaching the joined columns as "$<join name>$<column>".
func (p *Plan) selectQuery(t *schema.Table, paramOffset int) (string, []any) {
	inner, params := p.stagesQuery(t, paramOffset)
	if len(p.Joins) == 0 {
		return inner, params
	}

	var columns []adapter.Column
	for _, name := range p.outputColumns(t) {
		columns = append(columns, adapter.Column{Table: joinAlias, Names: []string{name}, Alias: name})
	}

	// joined rows keep the order of their paged hops after the outer join
	order := append([]adapter.OrderBy(nil), p.lastOrderBy()...)
	chains := adapter.SortedJoins(p.Joins)
	emitted := make(map[string]bool)
	for _, chain := range chains {
		for _, spec := range chain {
			if emitted[spec.Name] {
				continue
			}
			emitted[spec.Name] = true
			for _, col := range spec.Columns {
				columns = append(columns, adapter.Column{
					Table: spec.JoinAlias,
					Names: []string{col},
					Alias: joinColumn(spec.Name, col),
				})
			}
			for _, o := range spec.OrderBy {
				o.Table = spec.JoinAlias
				order = append(order, o)
			}
		}
	}

	outer, outerParams := adapter.SelectQuery(adapter.SelectSpec{
		Subquery: inner,
		Alias:    joinAlias,
		Columns:  columns,
		Joins:    chains,
		OrderBy:  order,
	}, paramOffset+len(params))
	return outer, append(params, outerParams...)
}

// idQuery selects only the primary key of the rows the stages produce.
func (p *Plan) idQuery(t *schema.Table, paramOffset int) (string, []any) {
	inner, params := p.stagesQuery(t, paramOffset)
	pk := t.PrimaryKeyColumn()
	sql, _ := adapter.SelectQuery(adapter.SelectSpec{
		Subquery: inner,
		Alias:    idAlias,
		Columns:  []adapter.Column{{Names: []string{pk}, Alias: pk}},
	}, paramOffset+len(params))
	return sql, params
}

func joinColumn(name, column string) string {
	return "$" + name + "$" + column
}
