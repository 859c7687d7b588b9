package output

import (
	"fmt"
	"sort"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/record"
	"github.com/hurou927/pg-composer/internal/schema"
)

// Dataset is the flattened set of records of a query result, including every
// joined record, grouped by record type. A record appears once per type even
// if several parents join to it.
type Dataset struct {
	tables  []*schema.Table
	records map[*schema.Table][]*record.Record
	seen    map[*schema.Table]map[string]bool
}

// NewDataset flattens c. Grouped collections hold no records and produce an
// empty dataset.
func NewDataset(c *record.Collection) *Dataset {
	d := &Dataset{
		records: make(map[*schema.Table][]*record.Record),
		seen:    make(map[*schema.Table]map[string]bool),
	}
	for _, r := range c.Records {
		d.add(r)
	}
	return d
}

func (d *Dataset) add(r *record.Record) {
	if r == nil {
		return
	}
	t := r.Type
	if _, ok := d.records[t]; !ok {
		d.tables = append(d.tables, t)
		d.records[t] = nil
		d.seen[t] = make(map[string]bool)
	}
	if id := r.ID(); id != nil {
		key := fmt.Sprint(id)
		if d.seen[t][key] {
			return
		}
		d.seen[t][key] = true
	}
	d.records[t] = append(d.records[t], r)

	for _, name := range r.JoinedNames() {
		switch j := r.Joined(name).(type) {
		case *record.Record:
			d.add(j)
		case []*record.Record:
			for _, rec := range j {
				d.add(rec)
			}
		}
	}
}

// Len returns the number of records across all tables.
func (d *Dataset) Len() int {
	n := 0
	for _, recs := range d.records {
		n += len(recs)
	}
	return n
}

// Tables returns the tables holding records: those listed in order first,
// then the rest sorted by name.
func (d *Dataset) Tables(order []*schema.Table) []*schema.Table {
	out := make([]*schema.Table, 0, len(d.tables))
	placed := make(map[*schema.Table]bool, len(d.tables))
	for _, t := range order {
		if _, ok := d.records[t]; ok && !placed[t] {
			out = append(out, t)
			placed[t] = true
		}
	}
	var rest []*schema.Table
	for _, t := range d.tables {
		if !placed[t] {
			rest = append(rest, t)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].FullName() < rest[j].FullName() })
	return append(out, rest...)
}

// Records returns the records of t in the order they were first seen.
func (d *Dataset) Records(t *schema.Table) []*record.Record {
	return d.records[t]
}

// Columns returns the visible columns of t.
func (d *Dataset) Columns(t *schema.Table) []string {
	var out []string
	for _, c := range t.Columns {
		if !c.Hidden {
			out = append(out, c.Name)
		}
	}
	return out
}

// Rows returns the values of columns for each record of t. Unassigned
// fields are NULL and json columns are encoded as documents.
func (d *Dataset) Rows(t *schema.Table, columns []string) [][]any {
	isJSON := make([]bool, len(columns))
	for j, name := range columns {
		if c, ok := t.Column(name); ok && c.Type == adapter.JSON {
			isJSON[j] = true
		}
	}

	recs := d.records[t]
	rows := make([][]any, len(recs))
	for i, r := range recs {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = r.Get(c)
			if isJSON[j] {
				row[j] = jsonValue(row[j])
			}
		}
		rows[i] = row
	}
	return rows
}
