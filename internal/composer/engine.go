// Package composer builds queries against one record type as an immutable
// chain of commands, collapses the chain into a plan, renders it through the
// adapter and turns result rows back into records.
package composer

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/hurou927/pg-composer/internal/graph"
	"github.com/hurou927/pg-composer/internal/qerrors"
	"github.com/hurou927/pg-composer/internal/schema"
)

// Statement is one parameterized SQL statement.
type Statement struct {
	SQL    string
	Params []any
}

// Client executes statements. Rows are maps of column name to raw value.
type Client interface {
	Query(ctx context.Context, sql string, params []any) ([]map[string]any, error)
	// Transaction runs every statement atomically and returns the rows of
	// each one. Any failure rolls back the whole batch.
	Transaction(ctx context.Context, stmts []Statement) ([][]map[string]any, error)
}

// Engine binds a client and a relationship graph. It is safe for concurrent
// use once the graph is fully declared.
type Engine struct {
	client Client
	graph  *graph.Graph
	logger *zap.Logger
	strict bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Statements are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStrict makes comparisons against unknown columns fail with a
// validation error instead of being dropped.
func WithStrict(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// New creates an engine.
func New(client Client, g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		graph:  g,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the relationship graph.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Query starts a chain over t.
func (e *Engine) Query(t *schema.Table) *Composer {
	return &Composer{engine: e, table: t}
}

func (e *Engine) query(ctx context.Context, op string, t *schema.Table, st Statement) ([]map[string]any, error) {
	e.logger.Debug("executing statement",
		zap.String("op", op),
		zap.String("table", t.TableName()),
		zap.String("sql", st.SQL),
		zap.Int("params", len(st.Params)),
	)
	rows, err := e.client.Query(ctx, st.SQL, st.Params)
	if err != nil {
		e.logger.Error("statement failed",
			zap.String("op", op),
			zap.String("table", t.TableName()),
			zap.Error(err),
		)
		return nil, qerrors.WrapStorage(op, err)
	}
	return rows, nil
}

func (e *Engine) transaction(ctx context.Context, op string, t *schema.Table, stmts []Statement) ([][]map[string]any, error) {
	e.logger.Debug("executing transaction",
		zap.String("op", op),
		zap.String("table", t.TableName()),
		zap.Int("statements", len(stmts)),
	)
	for _, st := range stmts {
		e.logger.Debug("transaction statement", zap.String("sql", st.SQL), zap.Int("params", len(st.Params)))
	}
	results, err := e.client.Transaction(ctx, stmts)
	if err != nil {
		e.logger.Error("transaction failed",
			zap.String("op", op),
			zap.String("table", t.TableName()),
			zap.Error(err),
		)
		return nil, qerrors.WrapStorage(op, err)
	}
	return results, nil
}

// toInt64 converts a count returned by the driver.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
