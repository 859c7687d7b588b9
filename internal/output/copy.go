package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/schema"
)

// Writer writes COPY-format SQL output.
type Writer struct {
	w io.Writer
}

// NewWriter creates a new COPY output writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the BEGIN and session_replication_role setting.
func (cw *Writer) WriteHeader() error {
	_, err := fmt.Fprintln(cw.w, "BEGIN;")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cw.w, "SET session_replication_role = 'replica';")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cw.w)
	return err
}

// WriteFooter writes the session_replication_role reset and COMMIT.
func (cw *Writer) WriteFooter() error {
	_, err := fmt.Fprintln(cw.w, "SET session_replication_role = 'origin';")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cw.w, "COMMIT;")
	return err
}

// WriteTableData writes a COPY block for a single table. Each row holds one
// value per column, in columns order.
func (cw *Writer) WriteTableData(table *schema.Table, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	_, err := fmt.Fprintf(cw.w, "COPY %s.%s (%s) FROM stdin;\n",
		adapter.EscapeField(table.Schema), adapter.EscapeField(table.Name),
		strings.Join(adapter.EscapeFields(columns), ", "))
	if err != nil {
		return err
	}

	for _, row := range rows {
		vals := make([]string, len(row))
		for i, v := range row {
			vals[i] = EscapeCopyValue(v)
		}
		_, err := fmt.Fprintln(cw.w, strings.Join(vals, "\t"))
		if err != nil {
			return err
		}
	}

	_, err = fmt.Fprintln(cw.w, `\.`)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cw.w)
	return err
}

// WriteDataset writes every table of d wrapped in a single transaction.
// Tables are written in order first, then any others by name.
func (cw *Writer) WriteDataset(d *Dataset, order []*schema.Table) error {
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	for _, t := range d.Tables(order) {
		columns := d.Columns(t)
		if err := cw.WriteTableData(t, columns, d.Rows(t, columns)); err != nil {
			return fmt.Errorf("writing %s: %w", t.TableName(), err)
		}
	}
	return cw.WriteFooter()
}
