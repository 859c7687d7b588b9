package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hurou927/pg-composer/internal/composer"
)

// Pool is the part of *pgxpool.Pool the client uses.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Client runs composer statements on a pgx pool.
type Client struct {
	pool Pool
}

var _ composer.Client = (*Client)(nil)

// NewClient wraps pool.
func NewClient(pool Pool) *Client {
	return &Client{pool: pool}
}

// Query runs one statement and collects every row as a column map.
func (c *Client) Query(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	rows, err := c.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Transaction runs stmts in order inside one transaction. The first failure
// rolls back the whole batch.
func (c *Client) Transaction(ctx context.Context, stmts []composer.Statement) ([][]map[string]any, error) {
	results := make([][]map[string]any, 0, len(stmts))
	err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		for i, st := range stmts {
			rows, err := tx.Query(ctx, st.SQL, st.Params...)
			if err != nil {
				return fmt.Errorf("statement %d: %w", i, err)
			}
			out, err := collect(rows)
			if err != nil {
				return fmt.Errorf("statement %d: %w", i, err)
			}
			results = append(results, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func collect(rows pgx.Rows) ([]map[string]any, error) {
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}
