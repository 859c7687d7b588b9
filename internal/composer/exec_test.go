package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/pg-composer/internal/adapter"
	"github.com/hurou927/pg-composer/internal/qerrors"
	"github.com/hurou927/pg-composer/internal/record"
)

func total(n int64) []map[string]any {
	return []map[string]any{{adapter.TotalColumn: n}}
}

func TestCount(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{total(42)}

	n, err := f.engine.Query(f.users).Limit(10).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	require.Len(t, f.client.statements, 1)
	assert.NotContains(t, f.client.statements[0].SQL, "LIMIT")
}

func TestCountLimited(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{total(10)}

	n, err := f.engine.Query(f.users).Limit(10).CountLimited(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Contains(t, f.client.statements[0].SQL, "LIMIT 10")
}

func TestEndSkipsSelectWhenEmpty(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{total(0)}

	result, err := f.engine.Query(f.users).Limit(20, 10).End(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.client.statements, 1)
	assert.Equal(t, 0, result.Len())
	assert.Equal(t, int64(0), result.Total)
	assert.Equal(t, 20, result.Offset)
}

func TestEnd(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{
		total(30),
		{
			{"id": int64(1), "email": "a@example.com", "status": "open"},
			{"id": int64(2), "email": "b@example.com", "status": "open"},
		},
	}

	result, err := f.engine.Query(f.users).Where(Comparisons{"status": "open"}).Limit(2).End(context.Background())
	require.NoError(t, err)
	require.Len(t, f.client.statements, 2)
	assert.NotContains(t, f.client.statements[0].SQL, "LIMIT", "the total ignores the page")
	assert.Contains(t, f.client.statements[1].SQL, "LIMIT 2")

	assert.Equal(t, int64(30), result.Total)
	assert.Equal(t, []any{int64(1), int64(2)}, result.IDs())
	assert.Same(t, f.users, result.Records[0].Type)
	assert.False(t, result.Grouped)
}

func TestEndRebuildsNestedJoins(t *testing.T) {
	f := newFixture()
	row := func(userID, postID, commentID any) map[string]any {
		return map[string]any{
			"id":                    userID,
			"email":                 "u@example.com",
			"$posts$id":             postID,
			"$posts$user_id":        userID,
			"$posts$title":          "title",
			"$posts__comments$id":   commentID,
			"$posts__comments$body": "body",
		}
	}
	f.client.responses = [][]map[string]any{
		total(2),
		{
			row(int64(1), int64(10), int64(100)),
			row(int64(1), int64(10), int64(101)),
			row(int64(1), int64(11), nil),
			row(int64(1), int64(10), int64(100)),
			row(int64(2), nil, nil),
		},
	}

	result, err := f.engine.Query(f.users).Join("posts__comments").End(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	first := result.Records[0]
	assert.Equal(t, int64(1), first.ID())
	posts := first.JoinedRecords("posts")
	require.Len(t, posts, 2)
	assert.Equal(t, int64(10), posts[0].ID())
	assert.Same(t, f.posts, posts[0].Type)
	assert.Equal(t, "title", posts[0].Get("title"))

	comments := posts[0].JoinedRecords("comments")
	require.Len(t, comments, 2)
	assert.Equal(t, int64(100), comments[0].ID())
	assert.Equal(t, int64(101), comments[1].ID())
	assert.Same(t, f.comments, comments[0].Type)

	assert.True(t, posts[1].HasJoined("comments"))
	assert.Empty(t, posts[1].JoinedRecords("comments"))

	second := result.Records[1]
	assert.True(t, second.HasJoined("posts"))
	assert.Empty(t, second.JoinedRecords("posts"))
}

func TestEndSingleJoin(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{
		total(2),
		{
			{"id": int64(1), "$profile$id": int64(7), "$profile$bio": "hi"},
			{"id": int64(2), "$profile$id": nil, "$profile$bio": nil},
		},
	}

	result, err := f.engine.Query(f.users).Join("profile").End(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	profile := result.Records[0].JoinedRecord("profile")
	require.NotNil(t, profile)
	assert.Equal(t, "hi", profile.Get("bio"))

	assert.True(t, result.Records[1].HasJoined("profile"))
	assert.Nil(t, result.Records[1].JoinedRecord("profile"))
}

func TestEndGrouped(t *testing.T) {
	f := newFixture()
	rows := []map[string]any{{"status": "open", "total": int64(3)}}
	f.client.responses = [][]map[string]any{total(1), rows}

	result, err := f.engine.Query(f.users).
		GroupBy("status").
		AggregateTransform("total", []string{"id"}, adapter.Count.Transform()).
		End(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Grouped)
	assert.Empty(t, result.Records)
	assert.Equal(t, rows, result.Rows)
}

func TestEndWrapsClientErrors(t *testing.T) {
	f := newFixture()
	f.client.queryErr = errors.New("connection refused")

	_, err := f.engine.Query(f.users).End(context.Background())
	require.Error(t, err)
	assert.True(t, qerrors.IsStorage(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEndReportsChainError(t *testing.T) {
	f := newFixture()
	_, err := f.engine.Query(f.users).OrderBy("missing", adapter.Asc).End(context.Background())
	assert.True(t, qerrors.IsConfiguration(err))
	assert.Empty(t, f.client.statements)
}

func TestFirst(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{total(5), {{"id": int64(3)}}}

	rec, err := f.engine.Query(f.users).OrderBy("age", adapter.Desc).First(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.ID())
	assert.Contains(t, f.client.statements[1].SQL, `ORDER BY "t0"."age" DESC LIMIT 1`)
}

func TestFirstNotFound(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{total(0)}

	_, err := f.engine.Query(f.users).Where(Comparisons{"id": 99}).First(context.Background())
	assert.True(t, qerrors.IsNotFound(err))

	_, err = f.engine.Query(f.users).GroupBy("status").First(context.Background())
	assert.True(t, qerrors.IsConfiguration(err))
}

func TestUpdate(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{
		{{"id": int64(1)}, {"id": int64(2)}},
		total(2),
		{{"id": int64(2), "age": int64(30)}, {"id": int64(1), "age": int64(30)}},
	}

	result, err := f.engine.Query(f.users).
		Where(Comparisons{"status": "open"}).
		OrderBy("id", adapter.Desc).
		Update(context.Background(), map[string]any{"age": "30"})
	require.NoError(t, err)
	require.Len(t, f.client.statements, 3)

	update := f.client.statements[0]
	assert.True(t, strings.HasPrefix(update.SQL, `UPDATE "users" SET "age" = $1 WHERE "id" IN (`), update.SQL)
	assert.Contains(t, update.SQL, `WHERE ("t0"."status" = $2) ORDER BY "t0"."id" DESC) AS "u")`)
	assert.True(t, strings.HasSuffix(update.SQL, `RETURNING "id"`), update.SQL)
	assert.Equal(t, []any{int64(30), "open"}, update.Params)

	reload := f.client.statements[2]
	assert.Contains(t, reload.SQL, `WHERE (ARRAY["t0"."id"] <@ $1) ORDER BY "t0"."id" DESC`)
	assert.Equal(t, []any{[]int64{1, 2}}, reload.Params)

	assert.Equal(t, []any{int64(2), int64(1)}, result.IDs())
}

func TestUpdateNothingMatched(t *testing.T) {
	f := newFixture()
	result, err := f.engine.Query(f.users).Update(context.Background(), map[string]any{"age": 1})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Len())
	assert.Len(t, f.client.statements, 1)
}

func TestUpdateErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Query(f.users).GroupBy("status").Update(ctx, map[string]any{"age": 1})
	assert.True(t, qerrors.IsConfiguration(err))

	_, err = f.engine.Query(f.users).Update(ctx, map[string]any{"missing": 1})
	assert.True(t, qerrors.IsConfiguration(err))

	_, err = f.engine.Query(f.users).Update(ctx, map[string]any{"age": "old"})
	assert.True(t, qerrors.IsValidation(err))

	assert.Empty(t, f.client.statements)
}

func TestDestroyAll(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{{{"id": int64(4)}, {"id": int64(5)}}, nil}

	n, err := f.engine.Query(f.users).Where(Comparisons{"status": "closed"}).DestroyAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, f.client.statements, 2)
	assert.True(t, strings.HasPrefix(f.client.statements[0].SQL, `SELECT "u"."id" AS "id" FROM (`))
	assert.Equal(t, `DELETE FROM "users" WHERE "id" IN ($1,$2)`, f.client.statements[1].SQL)
	assert.Equal(t, []any{int64(4), int64(5)}, f.client.statements[1].Params)
}

func TestDestroyAllNothingMatched(t *testing.T) {
	f := newFixture()
	n, err := f.engine.Query(f.users).DestroyAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.client.statements, 1)
}

func TestDestroyCascadeDeletesChildrenFirst(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{{{"id": int64(1)}}}

	n, err := f.engine.Query(f.users).Where(Comparisons{"id": 1}).DestroyCascade(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, f.client.txs, 1)
	stmts := f.client.txs[0]
	require.Len(t, stmts, 4)
	assert.True(t, strings.HasPrefix(stmts[0].SQL, `DELETE FROM "comments" WHERE "id" IN (SELECT "c$posts__comments"."id" FROM "users" AS "d"`), stmts[0].SQL)
	assert.True(t, strings.HasPrefix(stmts[1].SQL, `DELETE FROM "profiles"`), stmts[1].SQL)
	assert.True(t, strings.HasPrefix(stmts[2].SQL, `DELETE FROM "posts"`), stmts[2].SQL)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" IN ($1)`, stmts[3].SQL)
	for _, st := range stmts {
		assert.Equal(t, []any{int64(1)}, st.Params)
	}
}

func TestDestroyCascadeRollsBack(t *testing.T) {
	f := newFixture()
	f.client.responses = [][]map[string]any{{{"id": int64(1)}}}
	f.client.txErr = errors.New("deadlock detected")

	n, err := f.engine.Query(f.users).DestroyCascade(context.Background())
	assert.Zero(t, n)
	assert.True(t, qerrors.IsStorage(err))
}

func TestSaveAll(t *testing.T) {
	f := newFixture()
	created := record.New(f.users, map[string]any{"email": "new@example.com", "age": "42"})
	existing := record.New(f.users, map[string]any{"id": int64(3), "status": "closed", "nickname": "ignored"})
	f.client.txResults = [][]map[string]any{
		{{"id": int64(9), "email": "new@example.com", "age": int64(42)}},
		{{"id": int64(3), "status": "closed"}},
	}

	err := SaveAll(context.Background(), f.engine, []*record.Record{created, existing})
	require.NoError(t, err)

	require.Len(t, f.client.txs, 1)
	stmts := f.client.txs[0]
	require.Len(t, stmts, 2)
	assert.Equal(t, `INSERT INTO "users" ("email","age") VALUES ($1,$2) RETURNING *`, stmts[0].SQL)
	assert.Equal(t, []any{"new@example.com", int64(42)}, stmts[0].Params)
	assert.Equal(t, `UPDATE "users" SET "status" = $1 WHERE "id" = $2 RETURNING *`, stmts[1].SQL)
	assert.Equal(t, []any{"closed", int64(3)}, stmts[1].Params)

	assert.Equal(t, int64(9), created.ID())
	assert.False(t, created.IsNew())
	assert.Equal(t, int64(42), created.Get("age"))
}

func TestSaveAllRecordsStorageError(t *testing.T) {
	f := newFixture()
	f.client.txErr = errors.New("unique violation")
	recs := []*record.Record{
		record.New(f.users, map[string]any{"email": "a@example.com"}),
		record.New(f.users, map[string]any{"email": "b@example.com"}),
	}

	err := SaveAll(context.Background(), f.engine, recs)
	require.Error(t, err)
	assert.True(t, qerrors.IsStorage(err))
	for _, r := range recs {
		assert.Contains(t, r.Errors(), QueryErrorField)
		assert.True(t, r.IsNew())
	}
}

func TestSaveAllValidatesBeforeWriting(t *testing.T) {
	f := newFixture()
	bad := record.New(f.users, map[string]any{"age": "old"})
	good := record.New(f.users, map[string]any{"age": 7})

	err := SaveAll(context.Background(), f.engine, []*record.Record{good, bad})
	assert.True(t, qerrors.IsValidation(err))
	assert.Contains(t, bad.Errors(), "age")
	assert.False(t, good.HasErrors())
	assert.Empty(t, f.client.txs)

	bad.Set("age", 8)
	f.client.txResults = [][]map[string]any{{{"id": int64(1)}}}
	require.NoError(t, SaveAll(context.Background(), f.engine, []*record.Record{bad}))
	assert.False(t, bad.HasErrors())
}
