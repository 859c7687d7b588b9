package dql

import (
	"github.com/jinzhu/inflection"

	"github.com/hurou927/pg-composer/internal/composer"
	"github.com/hurou927/pg-composer/internal/qerrors"
	"github.com/hurou927/pg-composer/internal/schema"
)

// Apply starts a chain over the record type the root field names and
// applies the tree to it: root properties filter the chain and every nested
// path is joined with its properties. Input is treated as untrusted, so
// hidden columns and unknown relationships are ignored.
func (q *Query) Apply(e *composer.Engine, catalog *schema.Catalog) (*composer.Composer, error) {
	t, ok := catalog.Lookup(q.Identifier)
	if !ok {
		t, ok = catalog.Lookup(inflection.Plural(q.Identifier))
	}
	if !ok {
		return nil, qerrors.Configurationf("dql.Apply", "unknown record type %q", q.Identifier)
	}

	c := e.Query(t)
	if props := q.Properties(""); len(props) > 0 {
		c = c.SafeWhere(props)
	}
	for _, path := range q.JoinPaths() {
		c = c.SafeJoin(path, q.Properties(path))
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return c, nil
}
