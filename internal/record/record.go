// Package record holds query results: records of one record type with their
// joined records nested under the join name.
package record

import (
	"sort"

	"github.com/hurou927/pg-composer/internal/schema"
)

// Record is one row of a record type plus any joined records.
type Record struct {
	Type *schema.Table

	fields map[string]any
	joined map[string]any // *Record, or []*Record for one-to-many joins
	errors map[string][]string
}

// New creates a record of type t holding the given fields.
func New(t *schema.Table, fields map[string]any) *Record {
	r := &Record{Type: t, fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		r.fields[k] = v
	}
	return r
}

// Get returns the value of field.
func (r *Record) Get(field string) any {
	return r.fields[field]
}

// Set assigns the value of field.
func (r *Record) Set(field string, v any) {
	r.fields[field] = v
}

// Has reports whether field has been assigned.
func (r *Record) Has(field string) bool {
	_, ok := r.fields[field]
	return ok
}

// ID returns the primary key value.
func (r *Record) ID() any {
	return r.fields[r.Type.PrimaryKeyColumn()]
}

// IsNew reports whether the record has no primary key value yet.
func (r *Record) IsNew() bool {
	return r.ID() == nil
}

// Fields returns the assigned column names in the type's column order,
// followed by any other assigned names sorted.
func (r *Record) Fields() []string {
	var out []string
	seen := make(map[string]bool, len(r.fields))
	for _, c := range r.Type.ColumnNames() {
		if _, ok := r.fields[c]; ok {
			out = append(out, c)
			seen[c] = true
		}
	}
	var extra []string
	for k := range r.fields {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Joined returns the value nested under name: a *Record, a []*Record, or
// nil.
func (r *Record) Joined(name string) any {
	return r.joined[name]
}

// JoinedRecord returns the single record nested under name.
func (r *Record) JoinedRecord(name string) *Record {
	rec, _ := r.joined[name].(*Record)
	return rec
}

// JoinedRecords returns the collection nested under name.
func (r *Record) JoinedRecords(name string) []*Record {
	recs, _ := r.joined[name].([]*Record)
	return recs
}

// JoinedNames returns the names of every join set on the record, sorted.
func (r *Record) JoinedNames() []string {
	names := make([]string, 0, len(r.joined))
	for name := range r.joined {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasJoined reports whether name has been set, even to nil or empty.
func (r *Record) HasJoined(name string) bool {
	_, ok := r.joined[name]
	return ok
}

// SetJoined nests a single record (possibly nil) under name.
func (r *Record) SetJoined(name string, rec *Record) {
	if r.joined == nil {
		r.joined = make(map[string]any)
	}
	r.joined[name] = rec
}

// InitJoined makes sure name holds a collection, possibly empty.
func (r *Record) InitJoined(name string) {
	if r.joined == nil {
		r.joined = make(map[string]any)
	}
	if _, ok := r.joined[name].([]*Record); !ok {
		r.joined[name] = []*Record{}
	}
}

// AppendJoined adds rec to the collection under name unless a record with
// the same id is already there.
func (r *Record) AppendJoined(name string, rec *Record) {
	r.InitJoined(name)
	recs := r.joined[name].([]*Record)
	id := rec.ID()
	for _, existing := range recs {
		if id != nil && existing.ID() == id {
			return
		}
	}
	r.joined[name] = append(recs, rec)
}

// SetError records a message against field.
func (r *Record) SetError(field, msg string) {
	if r.errors == nil {
		r.errors = make(map[string][]string)
	}
	r.errors[field] = append(r.errors[field], msg)
}

// Errors returns the messages recorded per field.
func (r *Record) Errors() map[string][]string {
	return r.errors
}

// HasErrors reports whether any error was recorded.
func (r *Record) HasErrors() bool {
	return len(r.errors) > 0
}

// ClearErrors drops all recorded errors.
func (r *Record) ClearErrors() {
	r.errors = nil
}

// ToObject projects the record and its joined records into plain maps.
// Hidden columns are left out.
func (r *Record) ToObject() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.fields)+len(r.joined))
	for k, v := range r.fields {
		if r.Type.IsHidden(k) {
			continue
		}
		out[k] = v
	}
	for name, v := range r.joined {
		switch j := v.(type) {
		case *Record:
			if j == nil {
				out[name] = nil
			} else {
				out[name] = j.ToObject()
			}
		case []*Record:
			objs := make([]map[string]any, len(j))
			for i, rec := range j {
				objs[i] = rec.ToObject()
			}
			out[name] = objs
		}
	}
	return out
}
