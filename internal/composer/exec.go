package composer

import (
	"context"
	"sort"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/qerrors"
	"github.com/hurou927/pg-composer/internal/record"
)

// Count returns the number of rows the chain matches. The last limit is
// ignored so that pagination does not clamp the total.
func (c *Composer) Count(ctx context.Context) (int64, error) {
	return c.count(ctx, false)
}

// CountLimited is Count honoring every limit of the chain.
func (c *Composer) CountLimited(ctx context.Context) (int64, error) {
	return c.count(ctx, true)
}

func (c *Composer) count(ctx context.Context, honorLimit bool) (int64, error) {
	st, err := c.CountSQL(honorLimit)
	if err != nil {
		return 0, err
	}
	rows, err := c.engine.query(ctx, "composer.Count", c.table, st)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	total, err := toInt64(rows[0][adapter.TotalColumn])
	if err != nil {
		return 0, qerrors.WrapStorage("composer.Count", err)
	}
	return total, nil
}

// End runs the chain. The total is counted first, ignoring the last limit;
// when it is zero the select is skipped.
func (c *Composer) End(ctx context.Context) (*record.Collection, error) {
	if c.err != nil {
		return nil, c.err
	}

	p := c.plan()
	unlimited, limit := p.withoutLastLimit()
	result := &record.Collection{Type: c.table, Grouped: p.Grouped()}
	if limit != nil {
		result.Offset = limit.Offset
	}

	rows, err := c.engine.query(ctx, "composer.Count", c.table, unlimited.countQuery(c.table))
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		if result.Total, err = toInt64(rows[0][adapter.TotalColumn]); err != nil {
			return nil, qerrors.WrapStorage("composer.End", err)
		}
	}
	if result.Total == 0 {
		return result, nil
	}

	sql, params := p.selectQuery(c.table, 0)
	rows, err = c.engine.query(ctx, "composer.End", c.table, Statement{SQL: sql, Params: params})
	if err != nil {
		return nil, err
	}

	if result.Grouped {
		result.Rows = rows
		return result, nil
	}
	result.Records = p.parseRows(c.table, rows)
	return result, nil
}

// First returns the first record of the chain or a not-found error.
func (c *Composer) First(ctx context.Context) (*record.Record, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.grouped() {
		return nil, qerrors.Configurationf("composer.First", "first is not supported on grouped queries")
	}
	result, err := c.Limit(1).End(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, qerrors.NotFoundf("composer.First", "no %s matched", c.table.TableName())
	}
	return result.Records[0], nil
}

// Update sets fields on every row the chain matches and returns the updated
// records, reloaded with the chain's ordering and joins.
func (c *Composer) Update(ctx context.Context, fields map[string]any) (*record.Collection, error) {
	const op = "composer.Update"
	if c.err != nil {
		return nil, c.err
	}
	if c.grouped() {
		return nil, qerrors.Configurationf(op, "cannot update a grouped query")
	}

	columns := make([]string, 0, len(fields))
	for k := range fields {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	values := make([]any, len(columns))
	for i, col := range columns {
		if !c.table.HasColumn(col) {
			return nil, qerrors.Configurationf(op, "unknown column %q on %q", col, c.table.TableName())
		}
		v, err := c.table.Sanitize(col, fields[col])
		if err != nil {
			return nil, qerrors.Validationf(op, "%s: %v", col, err)
		}
		values[i] = v
	}

	pk := c.table.PrimaryKeyColumn()
	sub, subParams := c.plan().idQuery(c.table, len(values))
	sql, params, err := adapter.UpdateAllQuery(c.table.TableName(), pk, columns, values, sub, subParams)
	if err != nil {
		return nil, qerrors.Configurationf(op, "%v", err)
	}

	rows, err := c.engine.query(ctx, op, c.table, Statement{SQL: sql, Params: params})
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(rows))
	for i, row := range rows {
		ids[i] = row[pk]
	}
	if len(ids) == 0 {
		return &record.Collection{Type: c.table}, nil
	}

	return c.reload(ids).End(ctx)
}

// reload builds a chain selecting ids that keeps the ordering and joins of
// the receiver.
func (c *Composer) reload(ids []any) *Composer {
	pk := c.table.PrimaryKeyColumn()
	out := c.engine.Query(c.table)

	value := any(ids)
	if col, ok := c.table.Column(pk); ok {
		if typ, ok := adapter.LookupType(col.Type); ok {
			if v, err := typ.SanitizeList(ids); err == nil {
				value = v
			}
		}
	}
	out = out.next(whereCommand{filter: adapter.NewMultiFilter([]adapter.Comparison{{
		Table:      c.table.TableName(),
		Column:     pk,
		Comparator: adapter.In,
		Value:      value,
	}})})

	for _, cmd := range c.commands() {
		switch cmd.(type) {
		case orderByCommand, joinCommand:
			out = out.next(cmd)
		}
	}
	return out
}

// ids returns the primary keys of the rows the chain matches.
func (c *Composer) ids(ctx context.Context, op string) ([]any, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.grouped() {
		return nil, qerrors.Configurationf(op, "cannot delete from a grouped query")
	}
	sql, params := c.plan().idQuery(c.table, 0)
	rows, err := c.engine.query(ctx, op, c.table, Statement{SQL: sql, Params: params})
	if err != nil {
		return nil, err
	}
	pk := c.table.PrimaryKeyColumn()
	ids := make([]any, len(rows))
	for i, row := range rows {
		ids[i] = row[pk]
	}
	return ids, nil
}

// DestroyAll deletes every row the chain matches and returns how many were
// matched.
func (c *Composer) DestroyAll(ctx context.Context) (int, error) {
	const op = "composer.DestroyAll"
	ids, err := c.ids(ctx, op)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	sql, params, err := adapter.DeleteAllQuery(c.table.TableName(), c.table.PrimaryKeyColumn(), ids, nil)
	if err != nil {
		return 0, qerrors.Configurationf(op, "%v", err)
	}
	if _, err := c.engine.query(ctx, op, c.table, Statement{SQL: sql, Params: params}); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DestroyCascade deletes every row the chain matches together with every
// descendant reachable through parent to child relationships, deepest
// first, in one transaction.
func (c *Composer) DestroyCascade(ctx context.Context) (int, error) {
	const op = "composer.DestroyCascade"
	ids, err := c.ids(ctx, op)
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	stmts, err := c.cascadeStatements(ids)
	if err != nil {
		return 0, err
	}
	if _, err := c.engine.transaction(ctx, op, c.table, stmts); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (c *Composer) cascadeStatements(ids []any) ([]Statement, error) {
	const op = "composer.DestroyCascade"
	table := c.table.TableName()
	pk := c.table.PrimaryKeyColumn()

	paths := c.node().Cascade()
	stmts := make([]Statement, 0, len(paths)+1)
	for i := len(paths) - 1; i >= 0; i-- {
		sql, params, err := adapter.DeleteAllQuery(table, pk, ids, paths[i].Joins(cascadeAlias, ""))
		if err != nil {
			return nil, qerrors.Configurationf(op, "%v", err)
		}
		stmts = append(stmts, Statement{SQL: sql, Params: params})
	}

	sql, params, err := adapter.DeleteAllQuery(table, pk, ids, nil)
	if err != nil {
		return nil, qerrors.Configurationf(op, "%v", err)
	}
	return append(stmts, Statement{SQL: sql, Params: params}), nil
}
