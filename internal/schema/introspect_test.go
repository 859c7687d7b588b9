package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hurou927/pg-composer/internal/adapter"
)

func TestTableLiteralWithoutIndex(t *testing.T) {
	tbl := &Table{Name: "tags", Columns: []Column{{Name: "name", Type: adapter.String}}}
	assert.True(t, tbl.HasColumn("name"))
	assert.Equal(t, DefaultPrimaryKey, tbl.PrimaryKeyColumn())
	assert.Nil(t, tbl.PKColumnNames())
	assert.Equal(t, "tags", tbl.FullName())
}

// catalogRows serves one canned result set through Scan.
type catalogRows struct {
	values [][]any
	pos    int
}

func (r *catalogRows) Close()                                       {}
func (r *catalogRows) Err() error                                   { return nil }
func (r *catalogRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *catalogRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *catalogRows) RawValues() [][]byte                          { return nil }
func (r *catalogRows) Conn() *pgx.Conn                              { return nil }

func (r *catalogRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *catalogRows) Values() ([]any, error) {
	return r.values[r.pos-1], nil
}

func (r *catalogRows) Scan(dest ...any) error {
	row := r.values[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *bool:
			*p = row[i].(bool)
		case *int:
			*p = row[i].(int)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

// catalogQuerier answers the three catalog queries by their constraint type.
type catalogQuerier struct {
	columns, pks, fks [][]any
	fkErr             error
}

func (q *catalogQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	switch {
	case strings.Contains(sql, "contype = 'p'"):
		return &catalogRows{values: q.pks}, nil
	case strings.Contains(sql, "contype = 'f'"):
		if q.fkErr != nil {
			return nil, q.fkErr
		}
		return &catalogRows{values: q.fks}, nil
	default:
		return &catalogRows{values: q.columns}, nil
	}
}

func blogCatalog() *catalogQuerier {
	return &catalogQuerier{
		columns: [][]any{
			{"public", "users", "id", "int8", false, 1, false, true},
			{"public", "users", "email", "varchar", true, 2, false, false},
			{"public", "posts", "id", "int8", false, 1, false, true},
			{"public", "posts", "user_id", "int8", false, 2, false, false},
			{"public", "posts", "tags", "_text", true, 3, true, false},
			{"public", "posts", "parent_id", "int8", true, 4, false, false},
		},
		pks: [][]any{
			{"public", "users", "id", 1},
			{"public", "posts", "id", 1},
		},
		fks: [][]any{
			{"posts_user_fk", "public", "posts", "user_id", "public", "users", "id", 1},
			{"posts_parent_fk", "public", "posts", "parent_id", "public", "posts", "id", 1},
		},
	}
}

func TestIntrospect(t *testing.T) {
	defer goleak.VerifyNone(t)

	tables, err := Introspect(context.Background(), blogCatalog(), []string{"public"})
	require.NoError(t, err)
	require.Len(t, tables, 2)

	users := tables["public.users"]
	require.NotNil(t, users)
	assert.Equal(t, []string{"id", "email"}, users.ColumnNames())
	assert.Equal(t, "id", users.PrimaryKeyColumn())
	id, _ := users.Column("id")
	assert.Equal(t, adapter.Serial, id.Type)
	assert.True(t, id.Properties.PrimaryKey)
	email, _ := users.Column("email")
	assert.Equal(t, adapter.String, email.Type)
	assert.True(t, email.Properties.Nullable)

	posts := tables["public.posts"]
	require.NotNil(t, posts)
	tags, _ := posts.Column("tags")
	assert.Equal(t, adapter.Text, tags.Type)
	assert.Equal(t, "text", tags.DataType)
	assert.True(t, tags.Properties.Array)

	require.Len(t, posts.ForeignKeys, 2)
	userFK := posts.ForeignKeys[0]
	assert.Equal(t, "posts_user_fk", userFK.Name)
	assert.Equal(t, []string{"user_id"}, userFK.ChildColumns)
	assert.Equal(t, "users", userFK.ParentTable)
	assert.False(t, userFK.IsSelfRef)
	assert.True(t, posts.ForeignKeys[1].IsSelfRef)
}

func TestIntrospectError(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := blogCatalog()
	q.fkErr = errors.New("permission denied")

	_, err := Introspect(context.Background(), q, []string{"public"})
	assert.ErrorContains(t, err, "querying foreign keys: permission denied")
}
