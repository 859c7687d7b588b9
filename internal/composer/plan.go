package composer

import (
	"sort"
	"strings"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/graph"
	"github.com/hurou927/pg-composer/internal/schema"
)

// Stage is one SELECT of a plan. Each stage after the first selects from
// the previous one.
type Stage struct {
	Where      adapter.MultiFilter
	GroupBy    []adapter.Expression
	Aggregates []adapter.Column
	OrderBy    []adapter.OrderBy
	Limit      *adapter.Limit
}

// rank is the highest clause rank present, or -1 for an empty stage.
func (s *Stage) rank() int {
	switch {
	case s.Limit != nil:
		return rankLimit
	case len(s.OrderBy) > 0:
		return rankOrder
	case len(s.GroupBy) > 0 || len(s.Aggregates) > 0:
		return rankGroup
	case len(s.Where) > 0:
		return rankWhere
	default:
		return -1
	}
}

// Grouped reports whether the stage aggregates.
func (s *Stage) Grouped() bool {
	return len(s.Aggregates) > 0
}

// Plan is a collapsed chain: nested stages plus the joins applied to the
// final stage's rows.
type Plan struct {
	Stages []Stage
	// Joins maps a join path name to its hops.
	Joins map[string][]adapter.JoinSpec
	// JoinTypes maps the name of every join hop to its record type.
	JoinTypes map[string]*schema.Table
}

// Plan collapses the chain. The result depends only on the chain, so
// collapsing twice yields equal plans.
func (c *Composer) Plan() *Plan {
	return c.plan()
}

func (c *Composer) plan() *Plan {
	return collapse(c.commands())
}

func collapse(cmds []command) *Plan {
	p := &Plan{
		Stages:    []Stage{{}},
		Joins:     make(map[string][]adapter.JoinSpec),
		JoinTypes: make(map[string]*schema.Table),
	}
	options := make(map[string]hopOptions)

	for _, cmd := range cmds {
		st := &p.Stages[len(p.Stages)-1]

		switch cmd := cmd.(type) {
		case whereCommand:
			st = p.stageFor(rankWhere)
			if len(st.Where) == 0 {
				st.Where = cmd.filter
			} else {
				st.Where = andFilters(st.Where, cmd.filter)
			}
		case groupByCommand:
			st = p.stageFor(rankGroup)
			st.GroupBy = append(st.GroupBy, cmd.expr)
		case aggregateCommand:
			st = p.stageFor(rankGroup)
			st.Aggregates = append(st.Aggregates, cmd.column)
		case orderByCommand:
			st = p.stageFor(rankOrder)
			st.OrderBy = append(st.OrderBy, cmd.order)
		case limitCommand:
			l := cmd.limit
			if st.Limit != nil {
				st = p.newStage()
			}
			st.Limit = &l
		case joinCommand:
			p.addJoin(cmd, options)
		}
	}

	p.applyOptions(options)
	return p
}

// canExtend reports whether a clause of rank r may be added to st.
func canExtend(st *Stage, r int) bool {
	if st.rank() > r {
		return false
	}
	// a grouped SELECT can only be ordered by its aliases unqualified, so
	// ordering wraps it instead
	if r == rankOrder && st.Grouped() {
		return false
	}
	return true
}

// stageFor returns the last stage if a clause of rank r may be added to it,
// else a new stage.
func (p *Plan) stageFor(r int) *Stage {
	st := &p.Stages[len(p.Stages)-1]
	if !canExtend(st, r) {
		return p.newStage()
	}
	return st
}

func (p *Plan) newStage() *Stage {
	p.Stages = append(p.Stages, Stage{})
	return &p.Stages[len(p.Stages)-1]
}

// andFilters combines two OR-of-AND filters with AND by distributing the
// groups.
func andFilters(a, b adapter.MultiFilter) adapter.MultiFilter {
	groups := make([][]adapter.Comparison, 0, len(a)*len(b))
	for _, ga := range a {
		for _, gb := range b {
			g := make([]adapter.Comparison, 0, len(ga)+len(gb))
			g = append(g, ga...)
			g = append(g, gb...)
			groups = append(groups, g)
		}
	}
	return adapter.NewMultiFilter(groups...)
}

// hopOptions are the filter and paging a join sets on its last hop.
type hopOptions struct {
	filter adapter.MultiFilter
	order  []adapter.OrderBy
	limit  *adapter.Limit
}

// addJoin merges a join into the joins map. A join extending an existing
// one replaces it; a join that is a prefix of an existing one is already
// covered by it. The options of each join are recorded against its last hop.
func (p *Plan) addJoin(cmd joinCommand, options map[string]hopOptions) {
	for i, spec := range cmd.joins {
		if _, ok := p.JoinTypes[spec.Name]; !ok {
			p.JoinTypes[spec.Name] = cmd.types[i]
		}
	}
	if last := cmd.joins[len(cmd.joins)-1]; len(last.MultiFilter) > 0 || last.Paged() {
		options[last.Name] = hopOptions{filter: last.MultiFilter, order: last.OrderBy, limit: last.Limit}
	}

	if _, ok := p.Joins[cmd.name]; ok {
		return
	}
	for name := range p.Joins {
		if isPathPrefix(cmd.name, name) {
			return
		}
	}
	for name := range p.Joins {
		if isPathPrefix(name, cmd.name) {
			delete(p.Joins, name)
		}
	}
	p.Joins[cmd.name] = cmd.joins
}

// applyOptions copies every join chain with each hop carrying the options
// recorded for it, so a hop shared by several chains filters and pages the
// same way whichever chain emits it.
func (p *Plan) applyOptions(options map[string]hopOptions) {
	for name, chain := range p.Joins {
		out := make([]adapter.JoinSpec, len(chain))
		for i, spec := range chain {
			o := options[spec.Name]
			spec.MultiFilter, spec.OrderBy, spec.Limit = o.filter, o.order, o.limit
			out[i] = spec
		}
		p.Joins[name] = out
	}
}

// isPathPrefix reports whether prefix names a strict ancestor of name,
// comparing whole segments.
func isPathPrefix(prefix, name string) bool {
	return strings.HasPrefix(name, prefix+graph.Delimiter)
}

// Grouped reports whether any stage aggregates.
func (p *Plan) Grouped() bool {
	for i := range p.Stages {
		if p.Stages[i].Grouped() {
			return true
		}
	}
	return false
}

// JoinNames returns the names of every join hop, shortest first.
func (p *Plan) JoinNames() []string {
	names := make([]string, 0, len(p.JoinTypes))
	for name := range p.JoinTypes {
		names = append(names, name)
	}
	sortJoinNames(names)
	return names
}

// sortJoinNames orders parents before their nested joins.
func sortJoinNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
}

// stageColumns returns the projected columns of every stage.
func (p *Plan) stageColumns(t *schema.Table) [][]adapter.Column {
	out := make([][]adapter.Column, len(p.Stages))
	var prev []string

	for i := range p.Stages {
		st := &p.Stages[i]
		var cols []adapter.Column
		switch {
		case st.Grouped():
			cols = append(cols, st.Aggregates...)
		case i == 0:
			for _, name := range t.ColumnNames() {
				cols = append(cols, adapter.Column{Names: []string{name}, Alias: name})
			}
		default:
			for _, name := range prev {
				cols = append(cols, adapter.Column{Names: []string{name}, Alias: name})
			}
		}

		prev = make([]string, len(cols))
		for j, col := range cols {
			prev[j] = col.Alias
		}
		out[i] = cols
	}
	return out
}

// outputColumns returns the column names the final stage produces.
func (p *Plan) outputColumns(t *schema.Table) []string {
	cols := p.stageColumns(t)
	return columnAliases(cols[len(cols)-1])
}

// inputColumns returns the columns a clause of rank r would be evaluated
// against, and whether they are the output of a grouped stage.
func (p *Plan) inputColumns(t *schema.Table, r int) ([]string, bool) {
	k := len(p.Stages) - 1
	if !canExtend(&p.Stages[k], r) {
		k++
	}
	if k == 0 {
		return t.ColumnNames(), false
	}

	grouped := false
	for i := 0; i < k; i++ {
		if p.Stages[i].Grouped() {
			grouped = true
		}
	}
	return columnAliases(p.stageColumns(t)[k-1]), grouped
}

func columnAliases(cols []adapter.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Alias
	}
	return names
}

// withoutLastLimit returns a copy of the plan with the last limit removed,
// and that limit.
func (p *Plan) withoutLastLimit() (*Plan, *adapter.Limit) {
	stages := append([]Stage(nil), p.Stages...)
	for i := len(stages) - 1; i >= 0; i-- {
		if stages[i].Limit != nil {
			l := stages[i].Limit
			stages[i].Limit = nil
			return &Plan{Stages: stages, Joins: p.Joins, JoinTypes: p.JoinTypes}, l
		}
	}
	return p, nil
}

// lastOrderBy returns the most recent ordering of the plan. Ordering made
// before a grouped stage does not carry past it.
func (p *Plan) lastOrderBy() []adapter.OrderBy {
	for i := len(p.Stages) - 1; i >= 0; i-- {
		if len(p.Stages[i].OrderBy) > 0 {
			return p.Stages[i].OrderBy
		}
		if p.Stages[i].Grouped() {
			return nil
		}
	}
	return nil
}
