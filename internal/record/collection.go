package record

import "github.com/hurou927/pg-composer/internal/schema"

// Collection is the result of a query: records in row order tagged with
// pagination metadata. Grouped queries fill Rows instead of Records.
type Collection struct {
	Type    *schema.Table
	Records []*Record
	Offset  int
	Total   int64

	Grouped bool
	Rows    []map[string]any
}

// Len returns the number of records, or of rows for grouped results.
func (c *Collection) Len() int {
	if c.Grouped {
		return len(c.Rows)
	}
	return len(c.Records)
}

// IDs returns the primary key of every record.
func (c *Collection) IDs() []any {
	ids := make([]any, len(c.Records))
	for i, r := range c.Records {
		ids[i] = r.ID()
	}
	return ids
}

// ToObject projects the collection into plain values.
func (c *Collection) ToObject() []map[string]any {
	if c.Grouped {
		return c.Rows
	}
	out := make([]map[string]any, len(c.Records))
	for i, r := range c.Records {
		out[i] = r.ToObject()
	}
	return out
}
