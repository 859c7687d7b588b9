package composer

import (
	"context"
	"errors"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/qerrors"
	"github.com/hurou927/pg-composer/internal/record"
)

// QueryErrorField is the field storage errors are recorded against.
const QueryErrorField = "_query"

// SaveAll inserts new records and updates existing ones in one transaction.
// Returned rows are written back to the records. When the transaction fails
// nothing is committed and the error is also recorded on every record.
func SaveAll(ctx context.Context, e *Engine, records []*record.Record) error {
	const op = "composer.SaveAll"
	if len(records) == 0 {
		return nil
	}

	stmts := make([]Statement, 0, len(records))
	var invalid bool
	for _, r := range records {
		st, err := saveStatement(r)
		if err != nil {
			var qe *qerrors.Error
			if errors.As(err, &qe) && qe.Kind == qerrors.Validation {
				invalid = true
				continue
			}
			return err
		}
		stmts = append(stmts, st)
	}
	if invalid {
		return qerrors.Validationf(op, "one or more records are invalid")
	}

	results, err := e.transaction(ctx, op, records[0].Type, stmts)
	if err != nil {
		for _, r := range records {
			r.SetError(QueryErrorField, err.Error())
		}
		return err
	}

	for i, rows := range results {
		if i >= len(records) || len(rows) == 0 {
			continue
		}
		for k, v := range rows[0] {
			records[i].Set(k, v)
		}
	}
	return nil
}

// saveStatement builds the INSERT or UPDATE for r. Fields that are not
// columns are ignored; values that cannot be converted are recorded as
// errors on r.
func saveStatement(r *record.Record) (Statement, error) {
	const op = "composer.SaveAll"
	t := r.Type
	pk := t.PrimaryKeyColumn()
	r.ClearErrors()

	var columns []string
	var values []any
	for _, f := range r.Fields() {
		if f == pk || !t.HasColumn(f) {
			continue
		}
		v, err := t.Sanitize(f, r.Get(f))
		if err != nil {
			r.SetError(f, err.Error())
			continue
		}
		columns = append(columns, f)
		values = append(values, v)
	}
	if r.HasErrors() {
		return Statement{}, qerrors.Validationf(op, "%s has invalid fields", t.TableName())
	}

	var sql string
	var params []any
	var err error
	if r.IsNew() {
		sql, params, err = adapter.InsertQuery(t.TableName(), columns, values)
	} else {
		sql, params, err = adapter.UpdateQuery(t.TableName(), pk, r.ID(), columns, values)
	}
	if err != nil {
		return Statement{}, qerrors.Configurationf(op, "%v", err)
	}
	return Statement{SQL: sql, Params: params}, nil
}
