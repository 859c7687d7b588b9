package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/record"
	"github.com/hurou927/pg-composer/internal/schema"
)

var (
	id    = schema.Column{Name: "id", Type: adapter.Serial, Properties: adapter.Properties{PrimaryKey: true}}
	users = schema.NewTable("users", id,
		schema.Column{Name: "email", Type: adapter.String},
		schema.Column{Name: "password", Type: adapter.String, Hidden: true},
		schema.Column{Name: "settings", Type: adapter.JSON},
	)
	posts = schema.NewTable("posts", id,
		schema.Column{Name: "user_id", Type: adapter.Int},
		schema.Column{Name: "title", Type: adapter.String},
	)
	tags = schema.NewTable("tags", id, schema.Column{Name: "name", Type: adapter.String})
)

func TestEscapeCopyValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, `\N`},
		{"true", true, "t"},
		{"false", false, "f"},
		{"int", int64(42), "42"},
		{"string", "a\tb\nc\\d", `a\tb\nc\\d`},
		{"bytes", []byte{0xde, 0xad}, `\\xdead`},
		{"time", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01-02 03:04:05+00"},
		{"any array", []any{int64(1), "two", nil, true}, `{1,"two",NULL,t}`},
		{"string array", []string{`a"b`, `c\d`}, `{"a\\"b","c\\\\d"}`},
		{"int array", []int64{3, 4}, "{3,4}"},
		{"map", map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeCopyValue(tt.in))
		})
	}
}

func blogCollection() *record.Collection {
	u1 := record.New(users, map[string]any{"id": int64(1), "email": "a@example.com", "password": "x", "settings": []any{"dark"}})
	u2 := record.New(users, map[string]any{"id": int64(2), "email": "b@example.com"})

	p1 := record.New(posts, map[string]any{"id": int64(10), "user_id": int64(1), "title": "first"})
	p2 := record.New(posts, map[string]any{"id": int64(11), "user_id": int64(1), "title": "second"})
	tag := record.New(tags, map[string]any{"id": int64(5), "name": "go"})
	p1.SetJoined("tag", tag)
	p2.SetJoined("tag", tag)
	u1.AppendJoined("posts", p1)
	u1.AppendJoined("posts", p2)
	u2.InitJoined("posts")

	return &record.Collection{Type: users, Records: []*record.Record{u1, u2}, Total: 2}
}

func TestDataset(t *testing.T) {
	d := NewDataset(blogCollection())

	assert.Equal(t, 5, d.Len(), "records reached twice are kept once")
	assert.Equal(t, []*schema.Table{posts, tags, users}, d.Tables(nil))
	assert.Equal(t, []*schema.Table{users, posts, tags}, d.Tables([]*schema.Table{users, posts}))
	assert.Len(t, d.Records(tags), 1)

	assert.Equal(t, []string{"id", "email", "settings"}, d.Columns(users))
	assert.Equal(t, [][]any{
		{int64(1), "a@example.com", `["dark"]`},
		{int64(2), "b@example.com", nil},
	}, d.Rows(users, d.Columns(users)))
}

func TestDatasetGrouped(t *testing.T) {
	d := NewDataset(&record.Collection{Type: users, Grouped: true, Rows: []map[string]any{{"n": 1}}})
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.Tables(nil))
}

func TestWriteDataset(t *testing.T) {
	var buf bytes.Buffer
	err := NewWriter(&buf).WriteDataset(NewDataset(blogCollection()), []*schema.Table{users, posts})
	require.NoError(t, err)

	want := "BEGIN;\n" +
		"SET session_replication_role = 'replica';\n" +
		"\n" +
		"COPY \"public\".\"users\" (\"id\", \"email\", \"settings\") FROM stdin;\n" +
		"1\ta@example.com\t[\"dark\"]\n" +
		"2\tb@example.com\t\\N\n" +
		"\\.\n" +
		"\n" +
		"COPY \"public\".\"posts\" (\"id\", \"user_id\", \"title\") FROM stdin;\n" +
		"10\t1\tfirst\n" +
		"11\t1\tsecond\n" +
		"\\.\n" +
		"\n" +
		"COPY \"public\".\"tags\" (\"id\", \"name\") FROM stdin;\n" +
		"5\tgo\n" +
		"\\.\n" +
		"\n" +
		"SET session_replication_role = 'origin';\n" +
		"COMMIT;\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteTableDataSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteTableData(tags, []string{"id"}, nil))
	assert.Empty(t, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteDatasetPropagatesErrors(t *testing.T) {
	err := NewWriter(failingWriter{}).WriteDataset(NewDataset(blogCollection()), nil)
	assert.EqualError(t, err, "disk full")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	c := blogCollection()
	c.Offset = 5
	require.NoError(t, WriteJSON(&buf, c))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "users", got["table"])
	assert.Equal(t, float64(5), got["offset"])
	assert.Equal(t, float64(2), got["total"])
	assert.NotContains(t, got, "grouped")

	records := got["records"].([]any)
	require.Len(t, records, 2)
	first := records[0].(map[string]any)
	assert.NotContains(t, first, "password")
	assert.Len(t, first["posts"], 2)
	assert.Equal(t, []any{}, records[1].(map[string]any)["posts"])
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &record.Collection{Type: users}))
	assert.Contains(t, buf.String(), `"records": []`)
}
