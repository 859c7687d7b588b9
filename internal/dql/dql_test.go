package dql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/composer"
	"github.com/hurou927/pg-composer/internal/graph"
	"github.com/hurou927/pg-composer/internal/qerrors"
	"github.com/hurou927/pg-composer/internal/schema"
)

const blogQuery = `posts(status: "open") { comments(approved: true) { author } }`

func TestParse(t *testing.T) {
	fields, err := Parse(blogQuery)
	require.NoError(t, err)
	require.Len(t, fields, 1)

	posts := fields[0]
	assert.Equal(t, "posts", posts.Name)
	assert.Equal(t, 0, posts.Offset)
	assert.Equal(t, []Property{{Name: "status", Value: "open"}}, posts.Properties)
	require.Len(t, posts.Children, 1)

	comments := posts.Children[0]
	assert.Equal(t, "comments", comments.Name)
	assert.Equal(t, 24, comments.Offset)
	assert.Equal(t, []Property{{Name: "approved", Value: true}}, comments.Properties)
	require.Len(t, comments.Children, 1)

	author := comments.Children[0]
	assert.Equal(t, "author", author.Name)
	assert.Empty(t, author.Properties)
	assert.Empty(t, author.Children)
}

func TestParseValues(t *testing.T) {
	tests := []struct {
		input string
		want  any
	}{
		{`null`, nil},
		{`true`, true},
		{`false`, false},
		{`42`, int64(42)},
		{`-7`, int64(-7)},
		{`+3`, int64(3)},
		{`1.5`, 1.5},
		{`-.25`, -0.25},
		{`2e3`, 2000.0},
		{`"plain"`, "plain"},
		{`"say \"hi\""`, `say "hi"`},
		{`"back\\"`, `back\`},
		{`"tab\tand é"`, "tab\tand é"},
		{`"{not a brace}"`, "{not a brace}"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			fields, err := Parse(`users(v: ` + tt.input + `)`)
			require.NoError(t, err)
			require.Len(t, fields[0].Properties, 1)
			assert.Equal(t, tt.want, fields[0].Properties[0].Value)
		})
	}
}

func TestParseLists(t *testing.T) {
	fields, err := Parse(`users(age__gte: 18, status: "open",) , posts() { comments, tags }`)
	require.NoError(t, err)
	require.Len(t, fields, 2)

	assert.Equal(t, map[string]any{"age__gte": int64(18), "status": "open"}, fields[0].Comparisons())
	assert.Empty(t, fields[1].Properties)
	require.Len(t, fields[1].Children, 2)
	assert.Equal(t, "tags", fields[1].Children[1].Name)
}

func TestParseBracesInStrings(t *testing.T) {
	fields, err := Parse(`posts { comments(body: "}{") }`)
	require.NoError(t, err)
	require.Len(t, fields[0].Children, 1)
	assert.Equal(t, "}{", fields[0].Children[0].Properties[0].Value)
}

func TestParseEmpty(t *testing.T) {
	fields, err := Parse("   ")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
	}{
		{"missing colon", `posts(status "open")`, 13},
		{"bad value", `posts(status: open)`, 14},
		{"number glued to name", `posts(n: 12ab)`, 9},
		{"unterminated string", `posts(status: "open)`, 14},
		{"unclosed properties", `posts(status: 1`, 15},
		{"unbalanced brace", `posts { comments`, 6},
		{"stray brace", `posts }`, 6},
		{"error inside children", `posts { comments(approved: maybe) }`, 27},
		{"name starting with digit", `1posts`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)

			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.offset, se.Offset)
			assert.True(t, qerrors.IsValidation(err))
		})
	}
}

func TestFormatTree(t *testing.T) {
	fields, err := Parse(blogQuery)
	require.NoError(t, err)

	q, err := FormatTree(fields, 2)
	require.NoError(t, err)
	assert.Equal(t, "posts", q.Identifier)
	assert.Equal(t, Structure{"posts": []any{Structure{"comments": []any{"author"}}}}, q.Structure)
	assert.Equal(t, map[string]any{"status": "open"}, q.Joins["posts"])
	assert.Equal(t, map[string]any{"approved": true}, q.Joins["posts__comments"])
	assert.Contains(t, q.Joins, "posts__comments__author")
	assert.Equal(t, []string{"comments", "comments__author"}, q.JoinPaths())
}

func TestFormatTreePrunesBeyondMaxDepth(t *testing.T) {
	fields, err := Parse(blogQuery)
	require.NoError(t, err)

	q, err := FormatTree(fields, 1)
	require.NoError(t, err)
	assert.Equal(t, Structure{"posts": []any{"comments"}}, q.Structure)
	assert.NotContains(t, q.Joins, "posts__comments__author")
	assert.Equal(t, []string{"comments"}, q.JoinPaths())

	q, err = FormatTree(fields, 0)
	require.NoError(t, err)
	assert.Contains(t, q.Joins, "posts__comments__author", "zero keeps every level")
}

func TestFormatTreeNeedsOneRoot(t *testing.T) {
	fields, err := Parse(`users posts`)
	require.NoError(t, err)

	_, err = FormatTree(fields, 0)
	assert.True(t, qerrors.IsValidation(err))

	_, err = FormatTree(nil, 0)
	assert.True(t, qerrors.IsValidation(err))
}

func newBlog() (*composer.Engine, *schema.Catalog) {
	id := schema.Column{Name: "id", Type: adapter.Serial, Properties: adapter.Properties{PrimaryKey: true}}
	users := schema.NewTable("users", id,
		schema.Column{Name: "name", Type: adapter.String},
		schema.Column{Name: "password", Type: adapter.String, Hidden: true},
	)
	posts := schema.NewTable("posts", id,
		schema.Column{Name: "title", Type: adapter.String},
		schema.Column{Name: "status", Type: adapter.String},
	)
	comments := schema.NewTable("comments", id,
		schema.Column{Name: "post_id", Type: adapter.Int},
		schema.Column{Name: "author_id", Type: adapter.Int},
		schema.Column{Name: "approved", Type: adapter.Boolean},
	)

	g := graph.New()
	g.Of(posts).JoinsTo(comments, graph.EdgeOptions{Multiple: true})
	g.Of(users).JoinsTo(comments, graph.EdgeOptions{As: "author", Multiple: true})

	return composer.New(nil, g), schema.NewCatalog(users, posts, comments)
}

func TestApply(t *testing.T) {
	e, catalog := newBlog()
	fields, err := Parse(blogQuery)
	require.NoError(t, err)
	q, err := FormatTree(fields, 0)
	require.NoError(t, err)

	c, err := q.Apply(e, catalog)
	require.NoError(t, err)

	st, err := c.SQL()
	require.NoError(t, err)
	assert.Contains(t, st.SQL, `FROM "posts" AS "t0" WHERE ("t0"."status" = $1)`)
	assert.Contains(t, st.SQL,
		`LEFT JOIN "comments" AS "j$comments" ON ("j$comments"."post_id" = "j"."id" AND (("j$comments"."approved" = $2)))`)
	assert.Contains(t, st.SQL,
		`LEFT JOIN "users" AS "j$comments__author" ON ("j$comments__author"."id" = "j$comments"."author_id")`)
	assert.Equal(t, []any{"open", true}, st.Params)
	assert.Len(t, c.Plan().Joins, 1)
}

func TestApplyIgnoresUntrustedInput(t *testing.T) {
	e, catalog := newBlog()
	fields, err := Parse(`post(password: "x") { likes, comments { author(password: "y") } }`)
	require.NoError(t, err)
	q, err := FormatTree(fields, 0)
	require.NoError(t, err)

	c, err := q.Apply(e, catalog)
	require.NoError(t, err)
	assert.Equal(t, "posts", c.Table().TableName(), "singular names resolve to the plural table")

	st, err := c.SQL()
	require.NoError(t, err)
	assert.NotContains(t, st.SQL, `"password" =`)
	assert.NotContains(t, st.SQL, "likes")
	assert.Empty(t, st.Params)
}

func TestApplyUnknownRoot(t *testing.T) {
	e, catalog := newBlog()
	q, err := FormatTree([]*Field{{Name: "invoices"}}, 0)
	require.NoError(t, err)

	_, err = q.Apply(e, catalog)
	assert.True(t, qerrors.IsConfiguration(err))
}
