package composer

import (
	"strconv"
	"strings"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/graph"
	"github.com/hurou927/pg-composer/internal/qerrors"
	"github.com/hurou927/pg-composer/internal/schema"
)

// Comparisons maps "field[__comparator]" keys, optionally prefixed by a
// relationship path ("posts__title__contains"), to values. The reserved keys
// "__order", "__offset" and "__count" set ordering and pagination.
type Comparisons map[string]any

const (
	keyOrder  = "__order"
	keyOffset = "__offset"
	keyCount  = "__count"
)

// Composer is one immutable node of a query chain. Every builder method
// returns a new node whose parent is the receiver, so partial chains can be
// shared and extended concurrently.
//
// Builder methods cannot return errors; the first error is carried down the
// chain and reported by Err and by every terminal operation.
type Composer struct {
	engine *Engine
	table  *schema.Table
	parent *Composer
	cmd    command
	err    error
}

// Table returns the record type the chain queries.
func (c *Composer) Table() *schema.Table {
	return c.table
}

// Err returns the first error raised while building the chain.
func (c *Composer) Err() error {
	return c.err
}

func (c *Composer) next(cmd command) *Composer {
	return &Composer{engine: c.engine, table: c.table, parent: c, cmd: cmd}
}

func (c *Composer) fail(err error) *Composer {
	return &Composer{engine: c.engine, table: c.table, parent: c, err: err}
}

func (c *Composer) node() *graph.Node {
	return c.engine.graph.Of(c.table)
}

// commands returns the chain's commands from the root.
func (c *Composer) commands() []command {
	var cmds []command
	for n := c; n != nil; n = n.parent {
		if n.cmd != nil {
			cmds = append(cmds, n.cmd)
		}
	}
	for i, j := 0, len(cmds)-1; i < j; i, j = i+1, j-1 {
		cmds[i], cmds[j] = cmds[j], cmds[i]
	}
	return cmds
}

// Where filters by one or more comparison groups, ORed together. Unknown
// columns are dropped unless the engine is strict; unresolved relationships
// are configuration errors.
func (c *Composer) Where(groups ...Comparisons) *Composer {
	return c.where(false, groups)
}

// SafeWhere is Where for untrusted input: comparisons on hidden columns or
// unresolved relationships are dropped, and groups left empty are ignored.
func (c *Composer) SafeWhere(groups ...Comparisons) *Composer {
	return c.where(true, groups)
}

func (c *Composer) where(safe bool, groups []Comparisons) *Composer {
	if c.err != nil {
		return c
	}

	groups, order, limit, err := extractReserved(groups)
	if err != nil {
		return c.fail(err)
	}

	out := c
	mf, err := c.parseComparisons(groups, safe)
	if err != nil {
		return c.fail(err)
	}
	if len(mf) > 0 {
		out = out.next(whereCommand{filter: mf})
	}
	if order != nil {
		col := order.Columns[0]
		if !safe || out.orderable(col) {
			out = out.OrderBy(col, order.Direction)
		}
	}
	if limit != nil {
		out = out.Limit(limit.Offset, limit.Count)
	}
	return out
}

// extractReserved strips the pagination keys out of every group.
func extractReserved(groups []Comparisons) ([]Comparisons, *adapter.OrderBy, *adapter.Limit, error) {
	var order *adapter.OrderBy
	var limit *adapter.Limit
	out := make([]Comparisons, 0, len(groups))

	for _, g := range groups {
		rest := make(Comparisons, len(g))
		for k, v := range g {
			switch k {
			case keyOrder:
				s, _ := v.(string)
				fields := strings.Fields(s)
				if len(fields) == 0 {
					continue
				}
				dir := adapter.Asc
				if len(fields) > 1 {
					dir = adapter.ParseDirection(fields[1])
				}
				order = &adapter.OrderBy{Expression: adapter.Expression{Columns: fields[:1]}, Direction: dir}
			case keyOffset, keyCount:
				n, err := toInt(v)
				if err != nil {
					return nil, nil, nil, qerrors.Validationf("composer.Where", "%s: %v", k, err)
				}
				if limit == nil {
					limit = &adapter.Limit{}
				}
				if k == keyOffset {
					limit.Offset = n
				} else {
					limit.Count = n
				}
			default:
				rest[k] = v
			}
		}
		out = append(out, rest)
	}
	return out, order, limit, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		i, err := toInt64(v)
		return int(i), err
	}
}

// OrderBy orders by a column of the chain's output.
func (c *Composer) OrderBy(field string, dir adapter.Direction) *Composer {
	return c.OrderByTransform([]string{field}, nil, dir)
}

// OrderByTransform orders by fn applied to the named columns.
func (c *Composer) OrderByTransform(columns []string, fn adapter.Transform, dir adapter.Direction) *Composer {
	if c.err != nil {
		return c
	}
	if err := c.checkColumns("composer.OrderBy", rankOrder, columns); err != nil {
		return c.fail(err)
	}
	if dir == "" {
		dir = adapter.Asc
	}
	return c.next(orderByCommand{order: adapter.OrderBy{
		Expression: adapter.Expression{Columns: columns, Transform: fn},
		Direction:  dir,
	}})
}

// Limit restricts the number of rows. With one argument it is the count;
// with two, offset and count. A count of zero or less only applies the
// offset.
func (c *Composer) Limit(n int, count ...int) *Composer {
	if c.err != nil {
		return c
	}
	l := adapter.Limit{Count: n}
	if len(count) > 0 {
		l = adapter.Limit{Offset: n, Count: count[0]}
	}
	if l.Offset < 0 {
		l.Offset = 0
	}
	return c.next(limitCommand{limit: l})
}

// Join nests the records reachable through the named relationship path.
// The optional comparisons restrict which joined rows match; base records
// without a match are kept. Their reserved keys order and page the joined
// rows of each base record. Joining a name already joined returns the
// receiver.
func (c *Composer) Join(name string, groups ...Comparisons) *Composer {
	return c.join(false, name, groups)
}

// SafeJoin is Join for untrusted input: an unresolved relationship returns
// the receiver and comparisons on hidden columns are dropped.
func (c *Composer) SafeJoin(name string, groups ...Comparisons) *Composer {
	return c.join(true, name, groups)
}

func (c *Composer) join(safe bool, name string, groups []Comparisons) *Composer {
	if c.err != nil {
		return c
	}
	for _, cmd := range c.commands() {
		if j, ok := cmd.(joinCommand); ok && j.name == name {
			return c
		}
	}

	path := c.node().FindExplicit(name)
	if path == nil {
		if safe {
			return c
		}
		return c.fail(qerrors.RelationshipNotFound("composer.Join", c.table.TableName(), name))
	}
	if c.grouped() {
		return c.fail(qerrors.Configurationf("composer.Join", "cannot join %q on a grouped query", name))
	}

	groups, order, limit, err := extractReserved(groups)
	if err != nil {
		return c.fail(err)
	}
	mf, err := parseGroups(c.engine, path.Target(), groups, safe, nil)
	if err != nil {
		return c.fail(err)
	}

	joins := path.Joins(joinAlias, "")
	last := &joins[len(joins)-1]
	last.MultiFilter = mf
	last.Limit = limit
	if order != nil {
		target := path.Target().Table()
		col := order.Columns[0]
		_, known := target.Column(col)
		switch {
		case !known && !safe:
			return c.fail(qerrors.Configurationf("composer.Join", "unknown column %q on %q", col, target.TableName()))
		case known && !(safe && target.IsHidden(col)):
			last.OrderBy = []adapter.OrderBy{*order}
		}
	}

	nodes := path.Nodes()
	types := make([]*schema.Table, 0, len(nodes)-1)
	for _, n := range nodes[1:] {
		types = append(types, n.Table())
	}

	return c.next(joinCommand{name: path.JoinName(), joins: joins, types: types})
}

// GroupBy groups by a column and selects it.
func (c *Composer) GroupBy(field string) *Composer {
	return c.GroupByTransform(field, []string{field}, nil)
}

// GroupByTransform groups by fn applied to the named columns and selects
// the grouped expression as alias.
func (c *Composer) GroupByTransform(alias string, columns []string, fn adapter.Transform) *Composer {
	if c.err != nil {
		return c
	}
	if err := c.checkGroupable("composer.GroupBy", columns); err != nil {
		return c.fail(err)
	}
	return c.next(groupByCommand{expr: adapter.Expression{Columns: columns, Transform: fn}}).
		AggregateTransform(alias, columns, fn)
}

// Aggregate selects a column in a grouped query.
func (c *Composer) Aggregate(field string) *Composer {
	return c.AggregateTransform(field, []string{field}, nil)
}

// AggregateTransform selects fn applied to the named columns as alias.
// Once a chain aggregates, its output is exactly the aggregate columns.
func (c *Composer) AggregateTransform(alias string, columns []string, fn adapter.Transform) *Composer {
	if c.err != nil {
		return c
	}
	if alias == "" {
		return c.fail(qerrors.Configurationf("composer.Aggregate", "aggregate alias is required"))
	}
	if err := c.checkGroupable("composer.Aggregate", columns); err != nil {
		return c.fail(err)
	}
	return c.next(aggregateCommand{column: adapter.Column{Names: columns, Alias: alias, Transform: fn}})
}

// checkGroupable rejects grouping a chain that joins, since aggregate rows
// have no key to join on.
func (c *Composer) checkGroupable(op string, columns []string) error {
	for _, cmd := range c.commands() {
		if j, ok := cmd.(joinCommand); ok {
			return qerrors.Configurationf(op, "cannot group a query joining %q", j.name)
		}
	}
	return c.checkColumns(op, rankGroup, columns)
}

// grouped reports whether any command aggregates.
func (c *Composer) grouped() bool {
	for _, cmd := range c.commands() {
		switch cmd.(type) {
		case groupByCommand, aggregateCommand:
			return true
		}
	}
	return false
}

func (c *Composer) checkColumns(op string, r int, columns []string) error {
	if len(columns) == 0 {
		return qerrors.Configurationf(op, "no columns given")
	}
	available, _ := c.plan().inputColumns(c.table, r)
	set := make(map[string]bool, len(available))
	for _, a := range available {
		set[a] = true
	}
	for _, col := range columns {
		if !set[col] {
			return qerrors.Configurationf(op, "unknown column %q on %q", col, c.table.TableName())
		}
	}
	return nil
}

// orderable reports whether untrusted input may order by column.
func (c *Composer) orderable(column string) bool {
	if c.checkColumns("", rankOrder, []string{column}) != nil {
		return false
	}
	_, grouped := c.plan().inputColumns(c.table, rankOrder)
	return grouped || !c.table.IsHidden(column)
}
