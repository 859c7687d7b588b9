package output

import (
	"encoding/json"
	"io"

	"github.com/hurou927/pg-composer/internal/record"
)

type jsonResult struct {
	Table   string           `json:"table"`
	Offset  int              `json:"offset"`
	Total   int64            `json:"total"`
	Grouped bool             `json:"grouped,omitempty"`
	Records []map[string]any `json:"records"`
}

// WriteJSON writes c as one indented JSON document with its pagination
// metadata. Hidden columns are left out.
func WriteJSON(w io.Writer, c *record.Collection) error {
	res := jsonResult{
		Offset:  c.Offset,
		Total:   c.Total,
		Grouped: c.Grouped,
		Records: c.ToObject(),
	}
	if c.Type != nil {
		res.Table = c.Type.TableName()
	}
	if res.Records == nil {
		res.Records = []map[string]any{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
