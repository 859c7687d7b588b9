package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertQuery(t *testing.T) {
	sql, args, err := InsertQuery("users", []string{"email", "name"}, []any{"a@b.c", "A"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("email","name") VALUES ($1,$2) RETURNING *`, sql)
	assert.Equal(t, []any{"a@b.c", "A"}, args)

	sql, args, err = InsertQuery("users", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" DEFAULT VALUES RETURNING *`, sql)
	assert.Empty(t, args)

	_, _, err = InsertQuery("users", []string{"email"}, nil)
	assert.Error(t, err)
}

func TestUpdateQuery(t *testing.T) {
	sql, args, err := UpdateQuery("users", "id", int64(4), []string{"name"}, []any{"B"})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = $1 WHERE "id" = $2 RETURNING *`, sql)
	assert.Equal(t, []any{"B", int64(4)}, args)
}

func TestUpdateAllQuery(t *testing.T) {
	sub := `SELECT "t0"."id" AS "id" FROM "users" AS "t0" WHERE ("t0"."status" = $3)`
	sql, args, err := UpdateAllQuery("users", "id", []string{"name", "status"}, []any{"B", "closed"}, sub, []any{"open"})
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "users" SET "name" = $1, "status" = $2 WHERE "id" IN (`+sub+`) RETURNING "id"`,
		sql)
	assert.Equal(t, []any{"B", "closed", "open"}, args)

	_, _, err = UpdateAllQuery("users", "id", nil, nil, sub, nil)
	assert.Error(t, err)
}

func TestDeleteQuery(t *testing.T) {
	sql, args, err := DeleteQuery("users", "id", 3)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = $1`, sql)
	assert.Equal(t, []any{3}, args)
}

func TestDeleteAllQuery(t *testing.T) {
	sql, args, err := DeleteAllQuery("users", "id", []any{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" IN ($1,$2)`, sql)
	assert.Equal(t, []any{1, 2}, args)

	sql, args, err = DeleteAllQuery("users", "id", []any{1, 2}, commentsJoin("c"))
	require.NoError(t, err)
	assert.Equal(t,
		`DELETE FROM "comments" WHERE "id" IN (`+
			`SELECT "c$posts__comments"."id" FROM "users" AS "d" `+
			`JOIN "posts" AS "c$posts" ON "c$posts"."user_id" = "d"."id" `+
			`JOIN "comments" AS "c$posts__comments" ON "c$posts__comments"."post_id" = "c$posts"."id" `+
			`WHERE "d"."id" IN ($1,$2))`,
		sql)
	assert.Equal(t, []any{1, 2}, args)
}

func TestCreateTableQuery(t *testing.T) {
	serial, _ := LookupType(Serial)
	sql, err := CreateTableQuery("users", []ColumnDef{
		{Name: "id", Type: Serial, Properties: serial.Properties},
		{Name: "email", Type: String, Properties: Properties{Length: 255, Unique: true}},
		{Name: "active", Type: Boolean, Properties: Properties{Nullable: true, Default: true}},
		{Name: "tags", Type: Text, Properties: Properties{Nullable: true, Array: true}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`CREATE TABLE "users" (`+
			`"id" BIGSERIAL NOT NULL, `+
			`"email" VARCHAR(255) NOT NULL, `+
			`"active" BOOLEAN DEFAULT TRUE, `+
			`"tags" TEXT[], `+
			`CONSTRAINT "pk_users" PRIMARY KEY("id"), `+
			`CONSTRAINT "unique_users_email" UNIQUE("email"))`,
		sql)

	_, err = CreateTableQuery("users", []ColumnDef{{Name: "x", Type: "decimal"}})
	assert.Error(t, err)
}

func TestOtherDDL(t *testing.T) {
	assert.Equal(t, `DROP TABLE IF EXISTS "users"`, DropTableQuery("users"))
	assert.Equal(t, `ALTER TABLE "users" DROP COLUMN IF EXISTS "age"`, DropColumnQuery("users", "age"))
	assert.Equal(t, `CREATE INDEX "index_users_email" ON "users" USING btree ("email")`, CreateIndexQuery("users", "email", ""))
	assert.Equal(t, `DROP INDEX IF EXISTS "index_users_email"`, DropIndexQuery("users", "email"))

	sql, err := AddColumnQuery("users", ColumnDef{Name: "age", Type: Int, Properties: DefaultProperties})
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "users" ADD COLUMN "age" BIGINT`, sql)
}
