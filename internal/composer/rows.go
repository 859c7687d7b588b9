package composer

import (
	"fmt"
	"strings"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/graph"
	"github.com/hurou927/pg-composer/internal/record"
	"github.com/hurou927/pg-composer/internal/schema"
)

// parseRows rebuilds records from joined rows. The same base row repeats
// once per joined row, so base and joined records are cached by primary key
// and each joined record is attached to the parent materialized from the
// same row.
func (p *Plan) parseRows(t *schema.Table, rows []map[string]any) []*record.Record {
	specs := make(map[string]adapter.JoinSpec)
	for _, chain := range p.Joins {
		for _, spec := range chain {
			specs[spec.Name] = spec
		}
	}
	names := p.JoinNames()

	pk := t.PrimaryKeyColumn()
	var out []*record.Record
	base := make(map[string]*record.Record)
	joined := make(map[string]map[string]*record.Record, len(names))
	for _, name := range names {
		joined[name] = make(map[string]*record.Record)
	}

	for _, row := range rows {
		fields, joinFields := splitRow(row)

		key := idKey(fields[pk])
		rec, ok := base[key]
		if !ok || fields[pk] == nil {
			rec = record.New(t, fields)
			base[key] = rec
			out = append(out, rec)
		}

		rowRecords := make(map[string]*record.Record, len(names))
		for _, name := range names {
			spec, ok := specs[name]
			if !ok {
				continue
			}

			parent := rec
			segment := name
			if i := strings.LastIndex(name, graph.Delimiter); i >= 0 {
				parent = rowRecords[name[:i]]
				segment = name[i+len(graph.Delimiter):]
			}
			if parent == nil {
				continue
			}

			values := joinFields[name]
			id := values[spec.PrimaryKey]
			if id == nil {
				if spec.Multiple {
					parent.InitJoined(segment)
				} else if !parent.HasJoined(segment) {
					parent.SetJoined(segment, nil)
				}
				continue
			}

			child, ok := joined[name][idKey(id)]
			if !ok {
				child = record.New(p.JoinTypes[name], values)
				joined[name][idKey(id)] = child
			}
			rowRecords[name] = child

			if spec.Multiple {
				parent.AppendJoined(segment, child)
			} else {
				parent.SetJoined(segment, child)
			}
		}
	}

	return out
}

// splitRow separates base columns from "$<join name>$<column>" columns.
func splitRow(row map[string]any) (map[string]any, map[string]map[string]any) {
	fields := make(map[string]any, len(row))
	joined := make(map[string]map[string]any)
	for k, v := range row {
		if !strings.HasPrefix(k, "$") {
			fields[k] = v
			continue
		}
		rest := k[1:]
		i := strings.Index(rest, "$")
		if i < 0 {
			fields[k] = v
			continue
		}
		name, column := rest[:i], rest[i+1:]
		if joined[name] == nil {
			joined[name] = make(map[string]any)
		}
		joined[name][column] = v
	}
	return fields, joined
}

func idKey(id any) string {
	return fmt.Sprintf("%T:%v", id, id)
}
